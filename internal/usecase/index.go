package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"finbot/internal/adapter/crawler"
	"finbot/internal/adapter/memstore"
	"finbot/internal/domain"
	"finbot/internal/port"
)

// ErrEmptyKnowledgeBase is returned when the crawl yields no text to index.
var ErrEmptyKnowledgeBase = errors.New("knowledge base is empty: no page produced any text")

type siteCrawler interface {
	Crawl(ctx context.Context, sitemapURL string, progress crawler.ProgressFunc) (*crawler.Result, error)
}

// IndexUseCase builds the in-memory knowledge base: crawl, chunk, embed, index.
type IndexUseCase struct {
	crawler  siteCrawler
	chunker  port.Chunker
	embedder port.Embedder
	logger   *zap.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	crawler siteCrawler,
	chunker port.Chunker,
	embedder port.Embedder,
	logger *zap.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexUseCase{
		crawler:  crawler,
		chunker:  chunker,
		embedder: embedder,
		logger:   logger,
	}
}

// KnowledgeBase is the result of a build. The index is read-only.
type KnowledgeBase struct {
	Index     *memstore.MemoryIndex
	Documents []domain.Document
	Chunks    []domain.Chunk
	Failures  []crawler.PageFailure
	Stats     domain.Stats
}

// CrawlResult is a crawl plus its chunking, without embeddings.
type CrawlResult struct {
	Documents []domain.Document
	Chunks    []domain.Chunk
	Failures  []crawler.PageFailure
	Stats     domain.Stats
}

// Crawl fetches and chunks the site but does not embed it.
func (u *IndexUseCase) Crawl(ctx context.Context, sitemapURL string, progress crawler.ProgressFunc) (*CrawlResult, error) {
	start := time.Now()

	res, err := u.crawler.Crawl(ctx, sitemapURL, progress)
	if err != nil {
		return nil, err
	}

	chunks, err := ChunkDocuments(u.chunker, res.Documents)
	if err != nil {
		return nil, err
	}

	stats := domain.Stats{
		Pages:       res.Pages,
		FailedPages: len(res.Failures),
		Documents:   len(res.Documents),
		Chunks:      len(chunks),
		AvgChunkLen: avgChunkLen(chunks),
	}
	stats.BuildSeconds = time.Since(start).Seconds()

	return &CrawlResult{
		Documents: res.Documents,
		Chunks:    chunks,
		Failures:  res.Failures,
		Stats:     stats,
	}, nil
}

// Build crawls sitemapURL and indexes every page. It runs once, before any question is
// answered; there is no incremental update.
func (u *IndexUseCase) Build(ctx context.Context, sitemapURL string, progress crawler.ProgressFunc) (*KnowledgeBase, error) {
	start := time.Now()

	crawled, err := u.Crawl(ctx, sitemapURL, progress)
	if err != nil {
		return nil, err
	}

	kb, err := u.index(ctx, crawled.Documents, crawled.Chunks)
	if err != nil {
		return nil, err
	}
	kb.Failures = crawled.Failures
	kb.Stats.Pages = crawled.Stats.Pages
	kb.Stats.FailedPages = crawled.Stats.FailedPages
	kb.Stats.BuildSeconds = time.Since(start).Seconds()

	u.logger.Info("knowledge base built",
		zap.Int("pages", kb.Stats.Pages),
		zap.Int("failed_pages", kb.Stats.FailedPages),
		zap.Int("documents", kb.Stats.Documents),
		zap.Int("chunks", kb.Stats.Chunks),
		zap.Int("dimension", kb.Stats.Dimension),
		zap.Float64("seconds", kb.Stats.BuildSeconds))

	return kb, nil
}

// BuildFromDocuments indexes documents that were obtained elsewhere.
func (u *IndexUseCase) BuildFromDocuments(ctx context.Context, docs []domain.Document) (*KnowledgeBase, error) {
	start := time.Now()

	chunks, err := ChunkDocuments(u.chunker, docs)
	if err != nil {
		return nil, err
	}

	kb, err := u.index(ctx, docs, chunks)
	if err != nil {
		return nil, err
	}
	kb.Stats.Pages = len(docs)
	kb.Stats.BuildSeconds = time.Since(start).Seconds()
	return kb, nil
}

func (u *IndexUseCase) index(ctx context.Context, docs []domain.Document, chunks []domain.Chunk) (*KnowledgeBase, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	u.logger.Info("embedding chunks",
		zap.Int("chunks", len(chunks)),
		zap.String("model", u.embedder.ModelName()))

	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	idx, err := memstore.NewIndex(chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	return &KnowledgeBase{
		Index:     idx,
		Documents: docs,
		Chunks:    chunks,
		Stats: domain.Stats{
			Documents:   len(docs),
			Chunks:      len(chunks),
			Dimension:   idx.Dimension(),
			AvgChunkLen: avgChunkLen(chunks),
		},
	}, nil
}

// ChunkDocuments splits every document, keeping document order.
func ChunkDocuments(chunker port.Chunker, docs []domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		cs, err := chunker.Chunk(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", doc.URL, err)
		}
		chunks = append(chunks, cs...)
	}
	return chunks, nil
}

func avgChunkLen(chunks []domain.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c.Text)
	}
	return float64(total) / float64(len(chunks))
}
