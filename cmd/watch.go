package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/rfplus/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rerun compare whenever the input file changes",
	Long: `Runs compare once, then again each time the input file is written.
Takes the same flags as compare. Stops on interrupt.`,
	PreRunE: bindCompareFlags,
	RunE:    runWatch,
}

func init() {
	addCompareFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := loadRuntime(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	status := ui.New(cmd.ErrOrStderr())
	run := compareRun{
		cfg:    cfg,
		input:  input,
		output: output,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		status: status,
		now:    time.Now,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rerun := func() {
		if err := run.execute(ctx); err != nil {
			status.Error(err.Error())
		}
	}
	rerun()
	status.Info(fmt.Sprintf("watching %s", input))
	return watchFile(ctx, input, cfg.Watch.Debounce, logger, rerun)
}

// watchFile calls fn once per burst of writes to path, after the file has
// been quiet for debounce. The parent directory is watched so editors that
// replace the file by rename are seen too. It returns when ctx is done.
func watchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: watch %s: %w", filepath.Dir(abs), err)
	}

	// Armed only by events.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// Watch errors are non-fatal.
			logger.Warn("watch error", "error", err)
		case <-timer.C:
			fn()
		}
	}
}
