// Package fmp is a small client for the Financial Modeling Prep v3 REST API.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Endpoints lists the supported FMP endpoints and whether each needs a symbol.
var Endpoints = map[string]bool{
	"quote":                   true,
	"profile":                 true,
	"ratios":                  true,
	"key-metrics":             true,
	"income-statement":        true,
	"balance-sheet-statement": true,
	"cash-flow-statement":     true,
	"historical-price-full":   true,
	"search":                  false,
}

// periodic endpoints accept limit and period.
var periodic = map[string]bool{
	"ratios":                  true,
	"key-metrics":             true,
	"income-statement":        true,
	"balance-sheet-statement": true,
	"cash-flow-statement":     true,
}

var ErrInvalidRequest = errors.New("invalid fmp request")

// APIError is a provider-side failure: an HTTP error status or an "Error Message" body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("fmp api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "fmp api error: " + e.Message
}

// Request is one structured lookup.
type Request struct {
	Endpoint string `json:"endpoint"`
	Symbol   string `json:"symbol,omitempty"`
	Query    string `json:"query,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Period   string `json:"period,omitempty"` // annual or quarter
}

func (r Request) Validate() error {
	needsSymbol, ok := Endpoints[r.Endpoint]
	if !ok {
		return fmt.Errorf("%w: unknown endpoint %q", ErrInvalidRequest, r.Endpoint)
	}
	if needsSymbol && strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: endpoint %q requires a symbol", ErrInvalidRequest, r.Endpoint)
	}
	if !needsSymbol && strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: endpoint %q requires a query", ErrInvalidRequest, r.Endpoint)
	}
	if r.Period != "" && r.Period != "annual" && r.Period != "quarter" {
		return fmt.Errorf("%w: period must be annual or quarter, got %q", ErrInvalidRequest, r.Period)
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidRequest)
	}
	return nil
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
	Logger  *zap.Logger
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("fmp API key is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
		logger:  logger,
	}, nil
}

// Fetch performs req and returns the JSON payload as received. Provider failures are
// returned as *APIError and are not retried.
func (c *Client) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint, params := c.buildURL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// the URL carries the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("fmp request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if msg := errorMessage(body); msg != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("fmp returned malformed JSON")
	}

	c.logger.Debug("fmp fetched",
		zap.String("endpoint", req.Endpoint),
		zap.String("symbol", req.Symbol),
		zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}

func (c *Client) buildURL(req Request) (string, url.Values) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)

	var path string
	if req.Endpoint == "search" {
		path = "/search"
		params.Set("query", strings.TrimSpace(req.Query))
		limit := req.Limit
		if limit == 0 {
			limit = 10
		}
		params.Set("limit", strconv.Itoa(limit))
	} else {
		path = "/" + req.Endpoint + "/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(req.Symbol)))
	}

	if periodic[req.Endpoint] {
		if req.Limit > 0 {
			params.Set("limit", strconv.Itoa(req.Limit))
		}
		if req.Period != "" {
			params.Set("period", req.Period)
		}
	}
	if req.Endpoint == "historical-price-full" && req.Limit > 0 {
		params.Set("timeseries", strconv.Itoa(req.Limit))
	}

	return c.baseURL + path, params
}

// errorMessage extracts FMP's {"Error Message": "..."}, {"error": "..."} or
// {"message": "..."} payloads.
func errorMessage(body []byte) string {
	var payload struct {
		ErrorMessage string `json:"Error Message"`
		Error        string `json:"error"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.ErrorMessage != "":
		return payload.ErrorMessage
	case payload.Error != "":
		return payload.Error
	case payload.Message != "":
		return payload.Message
	default:
		return ""
	}
}
