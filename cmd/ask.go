package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codito/arey/internal/config"
	"github.com/codito/arey/internal/interrupt"
	"github.com/codito/arey/internal/llm"
	"github.com/codito/arey/internal/prompt"
	"github.com/codito/arey/internal/session"
	"github.com/codito/arey/internal/ui"
)

var (
	askOverridesFile string
	askText          bool
)

var askCmd = &cobra.Command{
	Use:   "ask <instruction>",
	Short: "Run an instruction and stream the answer",
	Long: `Run a one-shot instruction against the configured task model.

Examples:
  arey ask "What is the capital of France?"
  arey ask "Summarize this commit message" -o my_tokens.yml
  arey ask "List 5 programming languages" --text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askOverridesFile, "overrides-file", "o", "", "Prompt token overrides file (yaml)")
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	instruction := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mode := cfg.TaskMode()

	tpl, err := prompt.Load(mode.Template)
	if err != nil {
		return err
	}
	if askOverridesFile != "" {
		overrides, err := prompt.ParseOverridesFile(askOverridesFile)
		if err != nil {
			return err
		}
		tpl = tpl.Merge(overrides)
	}

	model, err := llm.New(mode.Model)
	if err != nil {
		return err
	}
	defer model.Free()

	ctx, stop := interrupt.Context(context.Background())
	defer stop()

	capture := llm.CaptureStderr()
	err = model.Load(ctx, tpl.SystemTokens["system_prompt"])
	loadLogs := capture.Stop()
	if err != nil {
		printLogs(loadLogs)
		return err
	}

	task := session.NewTask(model, tpl, mode.Settings)
	output := make(chan string)
	type taskOutcome struct {
		result *session.TaskResult
		err    error
	}
	done := make(chan taskOutcome, 1)
	go func() {
		result, err := task.Run(ctx, instruction, func(chunk string) bool {
			select {
			case output <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		})
		close(output)
		done <- taskOutcome{result, err}
	}()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if !askText && isTTY {
		err = streamWithBubbleTea(output, stop)
	} else {
		err = streamPlainText(output)
	}
	// Drain chunks left behind if the UI exited early, so the producer
	// can finish and report its outcome.
	go func() {
		for range output {
		}
	}()
	outcome := <-done
	if err != nil {
		return err
	}
	if outcome.err != nil {
		printLogs(logsFor(outcome.result, loadLogs))
		return outcome.err
	}

	styles := ui.NewStyles(os.Stdout)
	fmt.Println(styles.Muted.Render(ui.CompletionFooter(outcome.result.FinishReason, outcome.result.Metrics)))
	printLogs(logsFor(outcome.result, loadLogs))
	return nil
}

func logsFor(result *session.TaskResult, loadLogs string) string {
	if result == nil {
		return loadLogs
	}
	return strings.TrimSpace(loadLogs + "\n" + result.Logs)
}

// printLogs emits captured model chatter when --verbose is set.
func printLogs(logs string) {
	if !verbose || strings.TrimSpace(logs) == "" {
		return
	}
	styles := ui.NewStyles(os.Stderr)
	fmt.Fprintln(os.Stderr, styles.Muted.Render(strings.TrimSpace(logs)))
}

// streamPlainText streams text directly without formatting
func streamPlainText(output <-chan string) error {
	for chunk := range output {
		fmt.Print(chunk)
	}
	fmt.Println()
	return nil
}

// askModel is the bubbletea model for streaming with glamour
type askModel struct {
	spinner    spinner.Model
	content    *strings.Builder
	output     <-chan string
	cancel     func()
	done       bool
	finalView  string
	hasContent bool
}

// chunkMsg carries a streaming chunk
type chunkMsg string

// doneMsg signals streaming is complete
type doneMsg struct{}

func newAskModel(output <-chan string, cancel func()) askModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return askModel{
		spinner: s,
		content: &strings.Builder{},
		output:  output,
		cancel:  cancel,
	}
}

func (m askModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChunk(m.output))
}

// waitForChunk reads from the channel and sends chunks as messages
func waitForChunk(output <-chan string) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-output
		if !ok {
			return doneMsg{}
		}
		return chunkMsg(chunk)
	}
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// Raw mode eats the signal, so cancel the generation here.
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chunkMsg:
		m.content.WriteString(string(msg))
		m.hasContent = true
		return m, waitForChunk(m.output)

	case doneMsg:
		m.done = true
		if m.content.Len() > 0 {
			rendered, err := ui.RenderMarkdown(m.content.String())
			if err != nil {
				m.finalView = m.content.String()
			} else {
				m.finalView = rendered
			}
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m askModel) View() string {
	if m.done {
		return m.finalView
	}
	if !m.hasContent {
		return m.spinner.View() + " Thinking..."
	}
	rendered, err := ui.RenderMarkdown(m.content.String())
	if err != nil {
		return m.content.String()
	}
	return rendered
}

// streamWithBubbleTea uses bubbletea for proper terminal handling
func streamWithBubbleTea(output <-chan string, cancel func()) error {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return streamPlainText(output)
	}
	defer tty.Close()

	p := tea.NewProgram(newAskModel(output, cancel), tea.WithInput(tty), tea.WithOutput(os.Stdout))
	_, err = p.Run()
	return err
}
