package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/sgx-labs/noter/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP stdio server",
		Long:  "Serve new_note, add_entry, combine_notes, list_notes and read_note as MCP tools over stdio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mcpserver.Version = Version
			srv := mcpserver.New(cfg.Dir, mcpserver.Options{
				Summarizer: newSummarizer(cfg, log),
				Prompt:     cfg.Prompt,
				Log:        log,
			})
			return srv.Serve(ctx)
		},
	}
}
