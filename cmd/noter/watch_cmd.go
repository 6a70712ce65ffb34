package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/cli"
	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/watcher"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report note changes as they happen",
		Long:  "Watch the notes directory and print each created, written or removed note until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cfg, log)
		},
	}
}

var kindColor = map[watcher.Kind]*color.Color{
	watcher.Created: color.New(color.FgGreen),
	watcher.Written: color.New(color.FgCyan),
	watcher.Removed: color.New(color.FgRed),
}

func runWatch(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create notes directory: %w", err)
	}
	w, err := watcher.New(cfg.Dir, watcher.DefaultDebounce, log)
	if err != nil {
		return err
	}

	cli.Info("Watching %s", cli.ShortenHome(cfg.Dir))
	cli.Info("Press Ctrl+C to stop.")
	return w.Run(ctx, func(events []watcher.Event) {
		for _, ev := range events {
			printEvent(ev)
		}
	})
}

func printEvent(ev watcher.Event) {
	c := kindColor[ev.Kind]
	if c == nil {
		c = color.New(color.Reset)
	}
	c.Fprintf(os.Stdout, "  %-8s", ev.Kind)
	fmt.Fprintf(os.Stdout, " %s\n", ev.ID.Filename())
}
