package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finbot/internal/usecase"
)

var (
	askJSON  bool
	askSteps bool
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a single question",
	Long: `Build the knowledge base, answer one question and exit.

Examples:
  finbot ask "What is an index fund?"
  finbot ask "Latest news on AAPL" --steps
  finbot ask "P/E ratio of MSFT" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer and tool steps as JSON")
	askCmd.Flags().BoolVar(&askSteps, "steps", false, "print the tool calls made for the answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), GetConfig(), GetLogger(), !askJSON)
	if err != nil {
		return err
	}

	resp, err := a.assistant.Invoke(cmd.Context(), usecase.NewSession(), args[0])
	if err != nil {
		return err
	}

	return printAnswer(cmd.OutOrStdout(), resp, askJSON, askSteps)
}

func printAnswer(out io.Writer, resp *usecase.Response, asJSON, steps bool) error {
	if asJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if steps {
		for _, s := range resp.Steps {
			status := "ok"
			if s.Error != "" {
				status = "error: " + s.Error
			}
			fmt.Fprintf(out, "[%d] %s %s (%s)\n", s.Iteration, s.Tool, s.Arguments, status)
		}
	}
	fmt.Fprintf(out, "-----------------\nAnswer:\n%s\n", resp.Output)
	return nil
}
