package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbot/internal/adapter/fmp"
	"finbot/internal/domain"
)

type stubRetriever struct {
	gotQuery string
	gotK     int
	results  []domain.ScoredChunk
	err      error
}

func (s *stubRetriever) Search(_ context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	s.gotQuery, s.gotK = query, k
	return s.results, s.err
}

type stubNews func(ctx context.Context, query string) (string, error)

func (f stubNews) Search(ctx context.Context, query string) (string, error) { return f(ctx, query) }

type stubFMP func(ctx context.Context, req fmp.Request) (json.RawMessage, error)

func (f stubFMP) Fetch(ctx context.Context, req fmp.Request) (json.RawMessage, error) {
	return f(ctx, req)
}

func TestKnowledgeBase_Invoke(t *testing.T) {
	r := &stubRetriever{results: []domain.ScoredChunk{
		{Chunk: domain.Chunk{URL: "https://zerodha.com/varsity/chapter/index-funds/", Text: " An index fund tracks an index. "}},
		{Chunk: domain.Chunk{URL: "https://zerodha.com/varsity/chapter/etf/", Text: "ETFs trade on exchanges."}},
	}}
	kb := NewKnowledgeBase(r, 4)

	out, err := kb.Invoke(context.Background(), json.RawMessage(`{"query":"  index fund "}`))
	require.NoError(t, err)

	assert.Equal(t, "index fund", r.gotQuery)
	assert.Equal(t, 4, r.gotK)
	assert.Equal(t,
		"[1] Source: https://zerodha.com/varsity/chapter/index-funds/\nAn index fund tracks an index.\n\n"+
			"[2] Source: https://zerodha.com/varsity/chapter/etf/\nETFs trade on exchanges.",
		out)
}

func TestKnowledgeBase_NoResults(t *testing.T) {
	kb := NewKnowledgeBase(&stubRetriever{}, 4)
	out, err := kb.Invoke(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "No relevant passages")
}

func TestQueryTools_InvalidArguments(t *testing.T) {
	kb := NewKnowledgeBase(&stubRetriever{}, 4)
	news := NewNews(stubNews(func(context.Context, string) (string, error) { return "", nil }))

	for _, args := range []string{`{}`, `{"query":"   "}`, `not json`} {
		_, err := kb.Invoke(context.Background(), json.RawMessage(args))
		assert.ErrorIs(t, err, ErrInvalidArguments, args)

		_, err = news.Invoke(context.Background(), json.RawMessage(args))
		assert.ErrorIs(t, err, ErrInvalidArguments, args)
	}
}

func TestNews_Invoke(t *testing.T) {
	news := NewNews(stubNews(func(_ context.Context, q string) (string, error) {
		assert.Equal(t, "TSLA", q)
		return "Tesla deliveries beat estimates", nil
	}))

	out, err := news.Invoke(context.Background(), json.RawMessage(`{"query":"TSLA"}`))
	require.NoError(t, err)
	assert.Equal(t, "Tesla deliveries beat estimates", out)
}

func TestFinancialData_Invoke(t *testing.T) {
	fd := NewFinancialData(stubFMP(func(_ context.Context, req fmp.Request) (json.RawMessage, error) {
		assert.Equal(t, fmp.Request{Endpoint: "quote", Symbol: "AAPL"}, req)
		return json.RawMessage(`[{"price":189.84}]`), nil
	}))

	out, err := fd.Invoke(context.Background(), json.RawMessage(`{"endpoint":"quote","symbol":"AAPL"}`))
	require.NoError(t, err)
	assert.Equal(t, `[{"price":189.84}]`, out)
}

func TestFinancialData_PropagatesProviderError(t *testing.T) {
	apiErr := &fmp.APIError{StatusCode: 429, Message: "Limit Reach"}
	fd := NewFinancialData(stubFMP(func(context.Context, fmp.Request) (json.RawMessage, error) {
		return nil, apiErr
	}))

	_, err := fd.Invoke(context.Background(), json.RawMessage(`{"endpoint":"quote","symbol":"AAPL"}`))
	var got *fmp.APIError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 429, got.StatusCode)
}

func TestSpecs(t *testing.T) {
	reg, err := NewRegistry(
		NewKnowledgeBase(&stubRetriever{}, 4),
		NewNews(stubNews(nil)),
		NewFinancialData(stubFMP(nil)),
	)
	require.NoError(t, err)

	specs := reg.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, []string{KnowledgeBaseName, NewsName, FinancialDataName},
		[]string{specs[0].Name, specs[1].Name, specs[2].Name})

	for _, s := range specs {
		assert.NotEmpty(t, s.Description)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(s.Parameters, &schema), s.Name)
		assert.Equal(t, "object", schema["type"])
	}

	var fmpSchema struct {
		Properties struct {
			Endpoint struct {
				Enum []string `json:"enum"`
			} `json:"endpoint"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(specs[2].Parameters, &fmpSchema))
	assert.Len(t, fmpSchema.Properties.Endpoint.Enum, len(fmp.Endpoints))
	assert.Equal(t, "quote", fmpSchema.Properties.Endpoint.Enum[0])

	_, ok := reg.Lookup(NewsName)
	assert.True(t, ok)
	_, ok = reg.Lookup("calculator")
	assert.False(t, ok)
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(NewNews(stubNews(nil)), NewNews(stubNews(nil)))
	assert.Error(t, err)
}
