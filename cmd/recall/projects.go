package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/catalog"
	"github.com/recall-dev/recall/internal/config"
	"github.com/recall-dev/recall/internal/logging"
	"github.com/recall-dev/recall/internal/scan"
)

func projectsCmd() *cobra.Command {
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List known project scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel)

			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()

			if !noRefresh {
				files, err := scan.Locate(cfg.TranscriptRoot, "")
				if err != nil {
					return err
				}
				if _, err := cat.Refresh(files, ""); err != nil {
					return err
				}
			}

			stats, err := cat.Projects()
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("no projects found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tSESSIONS\tRECORDS\tLAST ACTIVITY")
			for _, ps := range stats {
				last := "-"
				if !ps.LastTS.IsZero() {
					last = ps.LastTS.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", ps.Project, ps.Sessions, ps.Records, last)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Skip the catalog refresh")

	return cmd
}
