package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"finbot/internal/domain"
)

// CharChunker splits text into fixed windows of Size runes. Each window starts
// Size-Overlap runes after the previous one, so neighbours share exactly Overlap runes.
type CharChunker struct {
	size    int
	overlap int
}

func NewCharChunker(size, overlap int) (*CharChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &CharChunker{size: size, overlap: overlap}, nil
}

func (c *CharChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)

	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			ID:    generateChunkID(doc.ID, start, end),
			DocID: doc.ID,
			URL:   doc.URL,
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})

		// the last window always ends at the document end
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

func generateChunkID(docID string, start, end int) string {
	data := fmt.Sprintf("%s:%d-%d", docID, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
