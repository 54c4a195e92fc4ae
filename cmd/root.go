package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/codito/arey/internal/exitcode"
	"github.com/codito/arey/internal/llm"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "arey",
	Short: "A simple large language model app for your terminal",
	Long: `arey runs a local or remote language model from your terminal.

Examples:
  arey ask "What is the capital of France?"
  arey chat                          # interactive multi-turn session
  arey play notes.md                 # re-run a prompt file on every save`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show model logs after a run")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if err != context.Canceled {
			rootCmd.PrintErrln("Error:", err)
		}
		os.Exit(codeFor(err))
	}
}

// codeFor maps the core's tagged error categories to process exit codes.
func codeFor(err error) int {
	var exitErr exitcode.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return exitcode.Cancelled
	}
	var modelErr *llm.Error
	if errors.As(err, &modelErr) {
		switch modelErr.Category {
		case llm.CategoryConfig:
			return exitcode.ConfigError
		case llm.CategoryTemplate:
			return exitcode.TemplateError
		}
	}
	return exitcode.Error
}
