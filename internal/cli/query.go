package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"finbot/internal/adapter/retriever"
	"finbot/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the knowledge base",
	Long: `Build the knowledge base and print the passages nearest to a query,
without asking the language model anything.

Examples:
  finbot query -q "what is a stop loss order"
  finbot query -q "option greeks" --top-k 10 --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	_ = queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	if err := cfg.ResolveCredentials(); err != nil {
		return err
	}

	indexEmbedder, queryEmbedder, err := newEmbedders(cfg, logger)
	if err != nil {
		return err
	}
	kb, err := buildKnowledgeBase(cmd.Context(), cfg, logger, indexEmbedder, true)
	if err != nil {
		return err
	}

	retrieveUC := usecase.NewRetrieveUseCase(retriever.NewSemanticRetriever(kb.Index, queryEmbedder), cfg.Retrieve.TopK)

	chunks, err := retrieveUC.Retrieve(cmd.Context(), queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToResults(chunks)

	out := cmd.OutOrStdout()
	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s #%d (distance: %.4f) ---\n", i+1, r.URL, r.Index, r.Distance)
		text := []rune(r.Text)
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Fprintln(out, string(text))
		fmt.Fprintln(out)
	}
	return nil
}
