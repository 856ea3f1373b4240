package memstore

import (
	"fmt"
	"sort"

	"finbot/internal/domain"
)

// DefaultK is the number of results returned when the caller does not ask for a count.
const DefaultK = 4

// MemoryIndex is a brute-force nearest-neighbour index over chunk embeddings.
// It is built once and never modified, so concurrent searches need no locking.
type MemoryIndex struct {
	chunks    []domain.Chunk
	vectors   [][]float32
	dimension int
}

// NewIndex builds an index from chunks and their vectors, paired by position.
func NewIndex(chunks []domain.Chunk, vectors [][]float32) (*MemoryIndex, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	idx := &MemoryIndex{
		chunks:  make([]domain.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(idx.chunks, chunks)

	for i, v := range vectors {
		if i == 0 {
			idx.dimension = len(v)
		}
		if len(v) == 0 || len(v) != idx.dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), idx.dimension)
		}
		idx.vectors[i] = append([]float32(nil), v...)
	}

	return idx, nil
}

// Search returns the k chunks closest to query by squared euclidean distance,
// nearest first. Equal distances keep insertion order.
func (s *MemoryIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}
	if k <= 0 {
		k = DefaultK
	}

	scored := make([]domain.ScoredChunk, len(s.chunks))
	for i, v := range s.vectors {
		scored[i] = domain.ScoredChunk{
			Chunk:    s.chunks[i],
			Distance: squaredL2(query, v),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *MemoryIndex) Len() int {
	return len(s.chunks)
}

func (s *MemoryIndex) Dimension() int {
	return s.dimension
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
