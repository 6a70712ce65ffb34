package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/noter/internal/cli"
	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/notes"
)

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [today|yyyyMMdd]",
		Short: "List notes grouped by date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date string
			if len(args) == 1 {
				date = args[0]
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runLs(cfg, date)
		},
	}
}

func runLs(cfg *config.Config, date string) error {
	filter, err := notes.ResolveFilter(date, now())
	if err != nil {
		return err
	}

	groups, err := notes.GroupByDate(cfg.Dir, filter)
	if err != nil {
		if errors.Is(err, notes.ErrDirectoryNotFound) {
			cli.Info("No notes found in %s.", cli.ShortenHome(cfg.Dir))
			return nil
		}
		return err
	}
	if len(groups) == 0 {
		cli.Info("%s", noNotesMessage(filter))
		return nil
	}

	total := 0
	for _, g := range groups {
		cli.Section(notes.HeaderDate(g.Date))
		for _, f := range g.Files {
			cli.Item(f.ID.Filename(), fileSize(f.Path))
		}
		total += len(g.Files)
	}
	fmt.Println()
	cli.Info("%d notes across %d days in %s", total, len(groups), cli.ShortenHome(cfg.Dir))
	return nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	n := info.Size()
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
