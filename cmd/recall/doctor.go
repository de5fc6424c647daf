package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recall-dev/recall/internal/catalog"
	"github.com/recall-dev/recall/internal/config"
	"github.com/recall-dev/recall/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check transcript root and catalog health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			failures := 0

			failures += checkDir("transcript root", cfg.TranscriptRoot)

			files, err := scan.Locate(cfg.TranscriptRoot, "")
			if err != nil {
				report(false, "locate transcripts: %v", err)
				failures++
			} else {
				report(true, "transcript files: %d", len(files))
			}

			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				report(false, "catalog %s: %v", cfg.CatalogPath, err)
				failures++
			} else {
				defer cat.Close()
				report(true, "catalog: %s", cfg.CatalogPath)

				if n, err := cat.FileCount(); err != nil {
					report(false, "catalog file count: %v", err)
					failures++
				} else {
					report(true, "catalog files: %d", n)
				}
				if n, err := cat.RecordCount(); err != nil {
					report(false, "catalog record count: %v", err)
					failures++
				} else {
					report(true, "catalog records: %d", n)
				}
				if st, err := os.Stat(cfg.CatalogPath); err == nil {
					report(true, "catalog size: %d KB", st.Size()/1024)
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Println("all checks passed")
			return nil
		},
	}
}

func checkDir(label, path string) int {
	st, err := os.Stat(path)
	if err != nil {
		report(false, "%s %s: %v", label, path, err)
		return 1
	}
	if !st.IsDir() {
		report(false, "%s %s: not a directory", label, path)
		return 1
	}
	report(true, "%s: %s", label, path)
	return 0
}

func report(ok bool, format string, args ...any) {
	mark := "ok"
	if !ok {
		mark = "FAIL"
	}
	fmt.Printf("[%4s] %s\n", mark, fmt.Sprintf(format, args...))
}
