// Package tools exposes the knowledge base, news and financial-data adapters as tools
// the routing agent can call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finbot/internal/adapter/fmp"
	"finbot/internal/domain"
	"finbot/internal/port"
)

const (
	KnowledgeBaseName = "financial_kb"
	NewsName          = "yahoo_finance_news"
	FinancialDataName = "fmp_data"
)

// ErrInvalidArguments is returned when the model sends arguments a tool cannot use.
var ErrInvalidArguments = errors.New("invalid tool arguments")

var queryParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "The search query."}
  },
  "required": ["query"]
}`)

type queryArgs struct {
	Query string `json:"query"`
}

func parseQuery(args json.RawMessage) (string, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	q := strings.TrimSpace(a.Query)
	if q == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidArguments)
	}
	return q, nil
}

// KnowledgeBase answers general finance questions from the crawled site.
type KnowledgeBase struct {
	retriever port.Retriever
	topK      int
}

func NewKnowledgeBase(retriever port.Retriever, topK int) *KnowledgeBase {
	return &KnowledgeBase{retriever: retriever, topK: topK}
}

func (t *KnowledgeBase) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        KnowledgeBaseName,
		Description: "Use this tool for general financial knowledge queries about concepts, terms, trading terminology, investment basics and Zerodha-specific information.",
		Parameters:  queryParameters,
	}
}

func (t *KnowledgeBase) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	q, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	results, err := t.retriever.Search(ctx, q, t.topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No relevant passages found in the knowledge base.", nil
	}
	return FormatPassages(results), nil
}

// FormatPassages renders retrieved chunks with their source URL.
func FormatPassages(results []domain.ScoredChunk) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] Source: %s\n%s", i+1, r.Chunk.URL, strings.TrimSpace(r.Chunk.Text))
	}
	return b.String()
}

type newsSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// News looks up recent headlines for a company or ticker.
type News struct {
	client newsSearcher
}

func NewNews(client newsSearcher) *News {
	return &News{client: client}
}

func (t *News) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        NewsName,
		Description: "Use this tool for current market news, recent company developments, market trends and the latest financial events. The query should be a company ticker symbol such as AAPL or TSLA.",
		Parameters:  queryParameters,
	}
}

func (t *News) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	q, err := parseQuery(args)
	if err != nil {
		return "", err
	}
	return t.client.Search(ctx, q)
}

type fmpFetcher interface {
	Fetch(ctx context.Context, req fmp.Request) (json.RawMessage, error)
}

// FinancialData queries Financial Modeling Prep for prices, statements and ratios.
type FinancialData struct {
	client fmpFetcher
}

func NewFinancialData(client fmpFetcher) *FinancialData {
	return &FinancialData{client: client}
}

func (t *FinancialData) Spec() domain.ToolSpec {
	return domain.ToolSpec{
		Name:        FinancialDataName,
		Description: "Use this tool for stock prices, company profiles, financial ratios and metrics, financial statements, historical prices and company comparisons. Use endpoint \"search\" with a query to find a ticker symbol.",
		Parameters:  fmpParameters(),
	}
}

func (t *FinancialData) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var req fmp.Request
	if err := json.Unmarshal(args, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	raw, err := t.client.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func fmpParameters() json.RawMessage {
	endpoints := make([]string, 0, len(fmp.Endpoints))
	for _, name := range endpointOrder {
		if _, ok := fmp.Endpoints[name]; ok {
			endpoints = append(endpoints, name)
		}
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"endpoint": map[string]any{
				"type":        "string",
				"enum":        endpoints,
				"description": "The data set to fetch.",
			},
			"symbol": map[string]any{
				"type":        "string",
				"description": "Ticker symbol, required for every endpoint except search.",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "Company name to look up, used with the search endpoint.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Number of periods or results to return.",
			},
			"period": map[string]any{
				"type": "string",
				"enum": []string{"annual", "quarter"},
			},
		},
		"required": []string{"endpoint"},
	}
	raw, _ := json.Marshal(schema)
	return raw
}

// endpointOrder keeps the schema stable across runs.
var endpointOrder = []string{
	"quote",
	"profile",
	"ratios",
	"key-metrics",
	"income-statement",
	"balance-sheet-statement",
	"cash-flow-statement",
	"historical-price-full",
	"search",
}

// Registry holds the tools offered to the model, in a fixed order.
type Registry struct {
	tools  []port.Tool
	byName map[string]port.Tool
}

func NewRegistry(tools ...port.Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]port.Tool, len(tools))}
	for _, t := range tools {
		name := t.Spec().Name
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools = append(r.tools, t)
		r.byName[name] = t
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (port.Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Tools() []port.Tool {
	return append([]port.Tool(nil), r.tools...)
}

func (r *Registry) Specs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, len(r.tools))
	for i, t := range r.tools {
		specs[i] = t.Spec()
	}
	return specs
}
