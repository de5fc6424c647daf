package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/catalog"
	"github.com/recall-dev/recall/internal/config"
	"github.com/recall-dev/recall/internal/logging"
	"github.com/recall-dev/recall/internal/scan"
)

func indexCmd() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Refresh the session catalog",
		Long: `Scan the transcript root and bring the session catalog up to date.
Unchanged files are skipped; rows for deleted files are pruned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel)

			files, err := scan.Locate(cfg.TranscriptRoot, project)
			if err != nil {
				return err
			}

			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			stats, err := cat.Refresh(files, project)
			if err != nil {
				return err
			}
			fmt.Println(stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Only refresh files for this project scope")

	return cmd
}
