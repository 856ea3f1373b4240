package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"finbot/internal/tui"
	"finbot/internal/usecase"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Build the knowledge base once, then chat in the terminal. The
conversation is kept for the whole run and forgotten on exit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// Info logs on stderr would draw over the alt screen.
	logger := GetLogger().WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))

	a, err := buildApp(cmd.Context(), GetConfig(), logger, true)
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), a.assistant, usecase.NewSession())
}
