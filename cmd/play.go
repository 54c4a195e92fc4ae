package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/codito/arey/internal/config"
	"github.com/codito/arey/internal/interrupt"
	"github.com/codito/arey/internal/prompt"
	"github.com/codito/arey/internal/session"
	"github.com/codito/arey/internal/ui"
)

var playNoWatch bool

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Re-run a prompt file on every save",
	Long: `Run the prompt from a markdown file with YAML front matter and
watch it for changes; every save re-runs the completion. Without a file
argument a starter file is created for you.

Example play file:

  ---
  model: llama3
  profile:
    temperature: 0.7
  ---

  Write a haiku about autumn rain.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playNoWatch, "no-watch", false, "Run once and exit instead of watching the file")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		path, err = session.CreatePlayFile(os.TempDir())
		if err != nil {
			return err
		}
		fmt.Printf("Created play file %s\n", path)
	}

	mode := cfg.TaskMode()
	tpl, err := prompt.Load(mode.Template)
	if err != nil {
		return err
	}

	play := session.NewPlay(cfg.ModelConfig, tpl)
	defer play.Close()

	ctx, stop := interrupt.Context(context.Background())
	defer stop()

	if err := playOnce(ctx, play, path); err != nil {
		return err
	}
	if playNoWatch {
		return nil
	}
	return watchPlayFile(ctx, play, path)
}

func playOnce(ctx context.Context, play *session.Play, path string) error {
	file, err := session.ParsePlayFile(path)
	if err != nil {
		return err
	}

	result, err := play.Run(ctx, file, func(chunk string) bool {
		fmt.Print(chunk)
		return true
	})
	fmt.Println()
	if err != nil {
		return err
	}

	styles := ui.NewStyles(os.Stdout)
	fmt.Println(styles.Muted.Render(ui.CompletionFooter(result.FinishReason, result.Metrics)))
	printLogs(logsFor(result, play.LoadLogs))
	return nil
}

// watchPlayFile re-runs the prompt whenever the file is written. Editors
// commonly replace the file on save, so the watch covers the directory and
// filters events for our path.
func watchPlayFile(ctx context.Context, play *session.Play, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	fmt.Printf("Watching %s, save the file to run. Ctrl+C exits.\n", path)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := playOnce(ctx, play, path); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
