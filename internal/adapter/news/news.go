// Package news looks up recent headlines through the Yahoo Finance search endpoint.
package news

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

type Options struct {
	BaseURL   string
	UserAgent string
	Count     int
	Timeout   time.Duration
	Client    *http.Client
	Logger    *zap.Logger
}

type Client struct {
	baseURL   string
	userAgent string
	count     int
	client    *http.Client
	logger    *zap.Logger
}

type Article struct {
	Title          string   `json:"title"`
	Publisher      string   `json:"publisher"`
	Link           string   `json:"link"`
	PublishTime    int64    `json:"providerPublishTime"`
	RelatedTickers []string `json:"relatedTickers"`
}

type searchResponse struct {
	News []Article `json:"news"`
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://query2.finance.yahoo.com"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	if opts.Count <= 0 {
		opts.Count = 5
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
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		count:     opts.Count,
		client:    client,
		logger:    logger,
	}
}

// Articles returns the raw news entries for query, usually a ticker symbol.
func (c *Client) Articles(ctx context.Context, query string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("news query is empty")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("newsCount", strconv.Itoa(c.count))
	params.Set("quotesCount", "0")

	endpoint := c.baseURL + "/v1/finance/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news provider returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse news response: %w", err)
	}

	c.logger.Debug("news fetched", zap.String("query", query), zap.Int("articles", len(parsed.News)))
	return parsed.News, nil
}

// Search returns the headlines for query formatted as text for the model.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	articles, err := c.Articles(ctx, query)
	if err != nil {
		return "", err
	}
	if len(articles) == 0 {
		return fmt.Sprintf("No news found for company that searched with %s ticker.", strings.TrimSpace(query)), nil
	}
	return Format(articles), nil
}

func Format(articles []Article) string {
	var b strings.Builder
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(a.Title)
		if a.Publisher != "" {
			b.WriteString("\nPublisher: ")
			b.WriteString(a.Publisher)
		}
		if a.PublishTime > 0 {
			b.WriteString("\nPublished: ")
			b.WriteString(time.Unix(a.PublishTime, 0).UTC().Format(time.RFC3339))
		}
		if a.Link != "" {
			b.WriteString("\nLink: ")
			b.WriteString(a.Link)
		}
	}
	return b.String()
}
