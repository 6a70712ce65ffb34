package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/cli"
	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/notes"
)

type combineOptions struct {
	date string
	keep bool
	noAI bool
}

func combineCmd() *cobra.Command {
	var opts combineOptions
	cmd := &cobra.Command{
		Use:   "combine [today|yyyyMMdd]",
		Short: "Merge each day's notes into one file",
		Long: `Merge every version of a date into a single note with a date header.

Without an argument every date with two or more notes is merged. The merged
note replaces version 0 and the other versions are deleted, unless --keep
writes it as a new version instead. An AI summary is added when a summarizer
is configured; --no-ai skips it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.date = args[0]
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			var summarizer notes.Summarizer
			if !opts.noAI {
				summarizer = newSummarizer(cfg, log)
			}
			return runCombine(cmd.Context(), cfg, log, summarizer, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep source notes and write the merge as a new version")
	cmd.Flags().BoolVar(&opts.noAI, "no-ai", false, "Skip the AI summary")
	return cmd
}

func runCombine(ctx context.Context, cfg *config.Config, log *zap.Logger, summarizer notes.Summarizer, opts combineOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	filter, err := notes.ResolveFilter(opts.date, now())
	if err != nil {
		return err
	}

	m := &notes.Merger{
		Summarizer: summarizer,
		Prompt:     cfg.Prompt,
		Summarize:  !opts.noAI && summarizer != nil,
		Keep:       opts.keep,
		Log:        log,
	}
	report, err := m.Merge(ctx, cfg.Dir, filter)
	if report == nil {
		return err
	}

	if report.FilesFound == 0 {
		cli.Info("%s", noNotesMessage(filter))
		return nil
	}
	if len(report.Groups) == 0 {
		cli.Info("Nothing to combine.")
		return nil
	}

	for _, g := range report.Groups {
		printGroup(g)
	}
	return err
}

func printGroup(g notes.GroupResult) {
	header := notes.HeaderDate(g.Date)
	for _, p := range g.Skipped {
		cli.Warn("%s: could not read %s, left in place", header, filepath.Base(p))
	}
	if !g.OK() {
		cli.Fail("%s: %v", header, g.Err)
		return
	}

	merged := len(g.Sources) - len(g.Skipped)
	msg := fmt.Sprintf("Combined %d notes for %s into %s", merged, header, filepath.Base(g.Target))
	if g.Summarized {
		msg += " with AI summary"
	}
	cli.Success("%s", msg)
	if g.Err != nil {
		cli.Warn("%s: %v", header, g.Err)
	}
}

func noNotesMessage(filter string) string {
	switch {
	case filter == "":
		return "No notes found."
	case filter == notes.TodayDateString(now()):
		return "No notes found for today."
	default:
		return fmt.Sprintf("No notes found for %s.", notes.HeaderDate(filter))
	}
}
