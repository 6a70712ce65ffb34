package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sgx-labs/noter/internal/config"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		Long:  "Print the configuration merged from --dir, the environment, ~/.noterrc and defaults. API keys are never printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			fmt.Print(config.Show(cfg))
			return nil
		},
	}
}
