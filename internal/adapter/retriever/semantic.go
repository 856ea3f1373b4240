package retriever

import (
	"context"
	"errors"
	"fmt"

	"finbot/internal/domain"
	"finbot/internal/port"
)

type SemanticRetriever struct {
	index    port.VectorIndex
	embedder port.Embedder
}

// NewSemanticRetriever queries index with vectors from embedder, which must be the
// embedder the index was built with.
func NewSemanticRetriever(index port.VectorIndex, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		index:    index,
		embedder: embedder,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if r.index == nil || r.embedder == nil {
		return nil, errors.New("semantic search not available: index not built")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, errors.New("embedding returned empty result")
	}

	results, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return results, nil
}
