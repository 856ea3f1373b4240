package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"finbot/config"
	"finbot/internal/adapter/chunker"
	"finbot/internal/adapter/crawler"
	"finbot/internal/adapter/embedding"
	"finbot/internal/adapter/retriever"
	"finbot/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding finbot.yaml and .env")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	maxPages := flag.Int("pages", 25, "Pages to crawl (0 = whole sitemap)")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -q \"query\" [-pages 25] [-k 10]")
		fmt.Println("\nReports:")
		fmt.Println("  1. Build cost (crawl, chunk, embed timings)")
		fmt.Println("  2. Semantic similarity of the nearest passages")
		fmt.Println("  3. Query latency, cold and cached")
		os.Exit(1)
	}

	config.LoadDotEnv(*dir)
	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	cfg.Crawl.MaxPages = *maxPages
	if err := cfg.ResolveCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	emb, err := embedding.NewOpenAIEmbedder(embedding.Options{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}
	queryEmbedder := embedding.NewCachedEmbedder(emb, cfg.Embedding.CacheSize)

	chk, err := chunker.NewCharChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chunker init failed: %v\n", err)
		os.Exit(1)
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
	})

	ctx := context.Background()
	indexUC := usecase.NewIndexUseCase(c, chk, emb, zap.NewNop())

	fmt.Println("KNOWLEDGE BASE BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	kb, err := indexUC.Build(ctx, cfg.Crawl.SitemapURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pages fetched: %d (%d failed)\n", kb.Stats.Pages, kb.Stats.FailedPages)
	fmt.Printf("Chunks indexed: %d (avg %.0f chars)\n", kb.Stats.Chunks, kb.Stats.AvgChunkLen)
	fmt.Printf("Model: %s\n", emb.ModelName())
	fmt.Printf("Dimension: %d\n", kb.Stats.Dimension)
	fmt.Printf("Build time: %.1fs\n", kb.Stats.BuildSeconds)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ret := retriever.NewSemanticRetriever(kb.Index, queryEmbedder)

	start := time.Now()
	results, err := ret.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	cold := time.Since(start)

	start = time.Now()
	if _, err := ret.Search(ctx, *query, *topK); err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	warm := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalSim := 0.0
	for i, r := range results {
		preview := []rune(r.Chunk.Text)
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		// Embeddings are unit length, so squared L2 distance d = 2 - 2cos.
		sim := 1 - r.Distance/2
		totalSim += sim

		rating := "LOW"
		if sim > 0.7 {
			rating = "HIGH"
		} else if sim > 0.5 {
			rating = "GOOD"
		} else if sim > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s #%d\n", i+1, rating, sim, shortURL(r.Chunk.URL), r.Chunk.Index)
		fmt.Printf("   %s\n\n", strings.ReplaceAll(string(preview), "\n", " "))
	}

	avgSim := totalSim / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgSim)
	fmt.Printf("  Top-1 similarity:   %.3f\n", 1-results[0].Distance/2)
	fmt.Printf("  Query latency:      %s cold, %s cached\n", cold.Round(time.Millisecond), warm.Round(time.Microsecond))

	if avgSim > 0.5 {
		fmt.Println("  Status: GOOD - the knowledge base covers this question")
	} else if avgSim > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - crawl more pages or rephrase")
	}
}

func shortURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return path.Base(strings.TrimSuffix(u.Path, "/"))
}
