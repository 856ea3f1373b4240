package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"finbot/config"
	"finbot/internal/adapter/cache"
	"finbot/internal/adapter/chunker"
	"finbot/internal/adapter/crawler"
	"finbot/internal/adapter/embedding"
	"finbot/internal/adapter/fmp"
	"finbot/internal/adapter/llm"
	"finbot/internal/adapter/news"
	"finbot/internal/adapter/retriever"
	"finbot/internal/adapter/tools"
	"finbot/internal/port"
	"finbot/internal/usecase"
)

// app holds everything a chat surface needs, built once per process.
type app struct {
	kb        *usecase.KnowledgeBase
	tools     *tools.Registry
	assistant *usecase.Assistant
}

// buildApp resolves credentials, builds the knowledge base and wires the agent.
// Credentials are checked before any network call.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, showProgress bool) (*app, error) {
	if err := cfg.ResolveCredentials(); err != nil {
		return nil, err
	}

	model, err := llm.New(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger.Named("llm"),
	})
	if err != nil {
		return nil, err
	}

	fmpClient, err := fmp.New(fmp.Options{
		BaseURL: cfg.FMP.BaseURL,
		APIKey:  cfg.FMP.APIKey,
		Timeout: cfg.FMP.Timeout,
		Logger:  logger.Named("fmp"),
	})
	if err != nil {
		return nil, err
	}

	indexEmbedder, queryEmbedder, err := newEmbedders(cfg, logger)
	if err != nil {
		return nil, err
	}

	kb, err := buildKnowledgeBase(ctx, cfg, logger, indexEmbedder, showProgress)
	if err != nil {
		return nil, err
	}

	var ret port.Retriever = retriever.NewSemanticRetriever(kb.Index, queryEmbedder)
	if cfg.Retrieve.CacheSize > 0 {
		ret = cache.NewCachedRetriever(ret, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL))
	}

	newsClient := news.New(news.Options{
		BaseURL:   cfg.News.BaseURL,
		UserAgent: cfg.News.UserAgent,
		Count:     cfg.News.Count,
		Timeout:   cfg.News.Timeout,
		Logger:    logger.Named("news"),
	})

	registry, err := tools.NewRegistry(
		tools.NewKnowledgeBase(ret, cfg.Retrieve.TopK),
		tools.NewNews(newsClient),
		tools.NewFinancialData(fmpClient),
	)
	if err != nil {
		return nil, err
	}

	agent := usecase.NewAgent(model, registry, usecase.AgentOptions{
		MaxIterations:      cfg.Agent.MaxIterations,
		MaxToolOutputChars: cfg.Agent.MaxToolOutputChars,
		Parallel:           cfg.Agent.Parallel,
		Logger:             logger.Named("agent"),
	})

	return &app{
		kb:        kb,
		tools:     registry,
		assistant: usecase.NewAssistant(agent, cfg.Agent.HistoryWindow, logger.Named("assistant")),
	}, nil
}

// newEmbedders returns the OpenAI embedder for the index build and the same embedder
// behind an LRU cache for questions. Chunk texts are embedded once, so they bypass the cache.
func newEmbedders(cfg *config.Config, logger *zap.Logger) (index, query port.Embedder, err error) {
	emb, err := embedding.NewOpenAIEmbedder(embedding.Options{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
		Logger:    logger.Named("embedding"),
	})
	if err != nil {
		return nil, nil, err
	}
	return emb, embedding.NewCachedEmbedder(emb, cfg.Embedding.CacheSize), nil
}

func newIndexUseCase(cfg *config.Config, logger *zap.Logger, embedder port.Embedder) (*usecase.IndexUseCase, error) {
	chk, err := chunker.NewCharChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	c := crawler.New(crawler.Options{
		UserAgent:   cfg.Crawl.UserAgent,
		Includes:    cfg.Crawl.Includes,
		Excludes:    cfg.Crawl.Excludes,
		MaxPages:    cfg.Crawl.MaxPages,
		Concurrency: cfg.Crawl.Concurrency,
		RateLimit:   cfg.Crawl.RateLimit,
		Timeout:     cfg.Crawl.Timeout,
		MaxPageSize: cfg.Crawl.MaxPageSize,
		Logger:      logger.Named("crawler"),
	})

	return usecase.NewIndexUseCase(c, chk, embedder, logger.Named("index")), nil
}

func buildKnowledgeBase(ctx context.Context, cfg *config.Config, logger *zap.Logger, embedder port.Embedder, showProgress bool) (*usecase.KnowledgeBase, error) {
	indexUC, err := newIndexUseCase(cfg, logger, embedder)
	if err != nil {
		return nil, err
	}

	var progress crawler.ProgressFunc
	if showProgress {
		progress = newProgress("Crawling")
	}

	kb, err := indexUC.Build(ctx, cfg.Crawl.SitemapURL, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base: %w", err)
	}
	return kb, nil
}

// newProgress returns a crawl progress callback drawing a bar on stderr, so stdout
// only carries answers.
func newProgress(description string) crawler.ProgressFunc {
	var bar *progressbar.ProgressBar
	var mu sync.Mutex

	return func(done, total int, url string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
