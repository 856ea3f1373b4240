package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/domain"
)

func results(ids ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(ids))
	for i, id := range ids {
		out[i] = domain.ScoredChunk{Chunk: domain.Chunk{ID: id}}
	}
	return out
}

func TestQueryCache_GetPut(t *testing.T) {
	c := NewQueryCache(10, time.Minute)

	_, ok := c.Get("nifty", 4)
	assert.False(t, ok)

	c.Put("nifty", 4, results("a"))
	got, ok := c.Get("nifty", 4)
	require.True(t, ok)
	assert.Equal(t, "a", got[0].Chunk.ID)

	_, ok = c.Get("nifty", 5)
	assert.False(t, ok, "k is part of the key")
}

func TestQueryCache_TTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("q", 4, results("a"))
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("q", 4)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	c.Put("a", 1, results("a"))
	c.Put("b", 1, results("b"))
	c.Get("a", 1)
	c.Put("c", 1, results("c"))

	_, ok := c.Get("b", 1)
	assert.False(t, ok)
	_, ok = c.Get("a", 1)
	assert.True(t, ok)
}

type stubRetriever struct {
	calls int
	err   error
}

func (s *stubRetriever) Search(_ context.Context, query string, _ int) ([]domain.ScoredChunk, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return results(query), nil
}

func TestCachedRetriever(t *testing.T) {
	inner := &stubRetriever{}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))

	for i := 0; i < 3; i++ {
		got, err := r.Search(context.Background(), "what is an index fund", 4)
		require.NoError(t, err)
		assert.Equal(t, "what is an index fund", got[0].Chunk.ID)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestCachedRetriever_ErrorsAreNotCached(t *testing.T) {
	inner := &stubRetriever{err: errors.New("boom")}
	r := NewCachedRetriever(inner, NewQueryCache(10, time.Minute))

	_, err := r.Search(context.Background(), "q", 4)
	assert.Error(t, err)
	_, err = r.Search(context.Background(), "q", 4)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
