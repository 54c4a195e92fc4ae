package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codito/arey/internal/config"
	"github.com/codito/arey/internal/interrupt"
	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
	"github.com/codito/arey/internal/session"
	"github.com/codito/arey/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a multi-turn chat session",
	Long: `Chat with the configured chat model. Type your message and press
enter; 'q' or 'quit' ends the session. Ctrl+C cancels an in-flight
response without quitting.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mode := cfg.ChatMode()

	tpl, err := prompt.Load(mode.Template)
	if err != nil {
		return err
	}
	model, err := llm.New(mode.Model)
	if err != nil {
		return err
	}

	chat := session.NewChat(model, tpl, mode.Settings)
	defer chat.Close()

	styles := ui.NewStyles(os.Stdout)
	fmt.Printf("Loading model %s...\n", mode.Model.Name)
	if err := chat.Load(context.Background()); err != nil {
		printLogs(chat.Context.Logs)
		return err
	}
	fmt.Println(styles.Muted.Render(ui.ModelFooter(chat.Context.Metrics)))
	printLogs(chat.Context.Logs)
	fmt.Println("Type 'q' to quit, Ctrl+C to cancel a response.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.Bold.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" || line == "exit" {
			return nil
		}

		if err := chatTurn(chat, line, styles); err != nil {
			return err
		}
	}
}

// chatTurn streams one response. Each turn registers its own interrupt
// context so Ctrl+C cancels the generation, not the session.
func chatTurn(chat *session.Chat, line string, styles *ui.Styles) error {
	ctx, stop := interrupt.Context(context.Background())
	defer stop()

	err := chat.StreamResponse(ctx, line, func(chunk string) bool {
		fmt.Print(chunk)
		return true
	})
	fmt.Println()
	if err != nil {
		return err
	}

	reply := chat.Messages[len(chat.Messages)-1]
	if reply.Context != nil {
		fmt.Println(styles.Muted.Render(ui.CompletionFooter(reply.Context.FinishReason, reply.Context.Metrics)))
		printLogs(reply.Context.Logs)
	}
	return nil
}
