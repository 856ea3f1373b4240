// Package crawler downloads the pages listed in a sitemap and reduces them to text.
package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"finbot/internal/domain"
)

// ProgressFunc is called after each page attempt with the number of pages done so far.
type ProgressFunc func(done, total int, url string)

type Options struct {
	UserAgent   string
	Includes    []string
	Excludes    []string
	MaxPages    int     // 0 = no limit
	Concurrency int
	RateLimit   float64 // requests per second, 0 = unlimited
	Timeout     time.Duration
	MaxPageSize int64
	Client      *http.Client
	Logger      *zap.Logger
}

type Crawler struct {
	client      *http.Client
	userAgent   string
	filter      *URLFilter
	maxPages    int
	concurrency int
	limiter     *rate.Limiter
	maxPageSize int64
	logger      *zap.Logger
}

// PageFailure records a page that could not be fetched or parsed.
type PageFailure struct {
	URL string
	Err error
}

type Result struct {
	Documents []domain.Document
	Pages     int // pages attempted
	Failures  []PageFailure
	Skipped   int // pages with no extractable text
}

func New(opts Options) *Crawler {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 4 << 20
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := opts.Concurrency
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		burst = 1
	}

	return &Crawler{
		client:      client,
		userAgent:   opts.UserAgent,
		filter:      NewURLFilter(opts.Includes, opts.Excludes),
		maxPages:    opts.MaxPages,
		concurrency: opts.Concurrency,
		limiter:     rate.NewLimiter(limit, burst),
		maxPageSize: opts.MaxPageSize,
		logger:      logger,
	}
}

// Crawl fetches the sitemap and every selected page. A sitemap failure aborts the crawl;
// page failures are collected in Result.Failures. Documents keep sitemap order.
func (c *Crawler) Crawl(ctx context.Context, sitemapURL string, progress ProgressFunc) (*Result, error) {
	urls, err := c.FetchSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	selected := c.filter.Apply(urls)
	if c.maxPages > 0 && len(selected) > c.maxPages {
		selected = selected[:c.maxPages]
	}
	c.logger.Info("sitemap loaded",
		zap.String("url", sitemapURL),
		zap.Int("listed", len(urls)),
		zap.Int("selected", len(selected)))

	docs := make([]*domain.Document, len(selected))
	errs := make([]error, len(selected))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, pageURL := range selected {
		g.Go(func() error {
			if err := c.limiter.Wait(gctx); err != nil {
				return err
			}

			doc, err := c.fetchPage(gctx, pageURL)
			if err != nil {
				errs[i] = err
			} else {
				docs[i] = doc
			}

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(selected), pageURL)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("crawl interrupted: %w", err)
	}

	result := &Result{Pages: len(selected)}
	for i, pageURL := range selected {
		switch {
		case errs[i] != nil:
			c.logger.Warn("page failed", zap.String("url", pageURL), zap.Error(errs[i]))
			result.Failures = append(result.Failures, PageFailure{URL: pageURL, Err: errs[i]})
		case docs[i] == nil || docs[i].Text == "":
			result.Skipped++
		default:
			result.Documents = append(result.Documents, *docs[i])
		}
	}

	return result, nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (*domain.Document, error) {
	body, contentType, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}

	title, text, err := ExtractText(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return &domain.Document{
		ID:    documentID(pageURL),
		URL:   pageURL,
		Title: title,
		Text:  text,
	}, nil
}

func documentID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:8])
}
