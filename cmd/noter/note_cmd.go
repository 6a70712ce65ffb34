package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/cli"
	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/notes"
)

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [content...]",
		Short: "Start a new note for today",
		Long:  "Create today's next note version. Any arguments are joined into its first entry; with none the note starts empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runNew(cfg, log, strings.Join(args, " "))
		},
	}
}

func runNew(cfg *config.Config, log *zap.Logger, content string) error {
	t := now()
	path, err := notes.Create(cfg.Dir, notes.TodayDateString(t), strings.TrimSpace(content), t)
	if err != nil {
		return err
	}
	log.Debug("created note", zap.String("path", path))
	cli.Success("Created %s", cli.ShortenHome(path))
	return nil
}

func addCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add [content...]",
		Short: "Append a timestamped entry to today's latest note",
		Long:  "Append an entry to today's most recent note, creating one if today has none. Give the entry as arguments or with --file, not both. Front matter at the top of the file is dropped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runAdd(cfg, log, notes.EntrySource{Text: strings.Join(args, " "), File: file})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the entry from a file")
	return cmd
}

func runAdd(cfg *config.Config, log *zap.Logger, src notes.EntrySource) error {
	content, err := src.Resolve()
	if err != nil {
		return err
	}
	path, err := notes.Append(cfg.Dir, content, now())
	if err != nil {
		return err
	}
	log.Debug("appended entry", zap.String("path", path), zap.Int("bytes", len(content)))
	cli.Success("Added entry to %s", filepath.Base(path))
	return nil
}
