// Package main is the entrypoint for the noter CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/llm"
	"github.com/sgx-labs/noter/internal/logging"
	"github.com/sgx-labs/noter/internal/notes"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags.
var (
	flagDir     string
	flagVerbose bool
)

// now is the clock used for note dates and entry stamps.
var now = time.Now

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "noter",
		Short: "Dated, versioned markdown notes",
		Long:  "noter keeps a directory of daily markdown notes named yyyyMMdd.N.md, appends timestamped entries and merges each day's versions into one file.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCmd())
	root.AddCommand(addCmd())
	root.AddCommand(combineCmd())
	root.AddCommand(lsCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())

	root.PersistentFlags().StringVar(&flagDir, "dir", "", "Notes directory (overrides NOTER_PATH and ~/.noterrc)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug logs to stderr")

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the noter version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("noter %s\n", Version)
			return nil
		},
	}
}

// loadConfig resolves configuration and builds the logger for a command.
// Callers must Sync the returned logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flagDir)
	if err != nil {
		return nil, nil, err
	}
	if flagVerbose {
		cfg.Verbose = true
	}
	log := logging.New(logging.Options{Verbose: cfg.Verbose, File: cfg.LogFile})
	log.Debug("configuration loaded",
		zap.String("dir", cfg.Dir),
		zap.String("rc", cfg.RCPath),
		zap.String("ai_provider", cfg.AI.Provider),
	)
	return cfg, log, nil
}

// newSummarizer builds the configured summarizer, or nil when summaries
// are disabled or no back-end can be reached.
func newSummarizer(cfg *config.Config, log *zap.Logger) notes.Summarizer {
	s, err := llm.NewSummarizer(cfg.AI, log)
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			log.Debug("summarizer unavailable", zap.Error(err))
		}
		return nil
	}
	return s
}
