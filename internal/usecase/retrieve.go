package usecase

import (
	"context"
	"strings"

	"finbot/internal/domain"
	"finbot/internal/port"
)

// RetrieveUseCase handles knowledge-base search.
type RetrieveUseCase struct {
	retriever port.Retriever
	topK      int
}

// NewRetrieveUseCase creates a new retrieve use case. topK is used when a caller asks
// for zero results.
func NewRetrieveUseCase(retriever port.Retriever, topK int) *RetrieveUseCase {
	return &RetrieveUseCase{
		retriever: retriever,
		topK:      topK,
	}
}

// Retrieve returns the chunks closest to query, nearest first.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = u.topK
	}
	return u.retriever.Search(ctx, strings.TrimSpace(query), topK)
}

// ScoredChunkResult is a simplified result for CLI output.
type ScoredChunkResult struct {
	URL      string  `json:"url"`
	Index    int     `json:"chunk"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

func ToResults(chunks []domain.ScoredChunk) []ScoredChunkResult {
	out := make([]ScoredChunkResult, len(chunks))
	for i, c := range chunks {
		out[i] = ScoredChunkResult{
			URL:      c.Chunk.URL,
			Index:    c.Chunk.Index,
			Start:    c.Chunk.Start,
			End:      c.Chunk.End,
			Distance: c.Distance,
			Text:     c.Chunk.Text,
		}
	}
	return out
}
