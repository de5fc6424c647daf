package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/recall-dev/recall/internal/catalog"
	"github.com/recall-dev/recall/internal/config"
	"github.com/recall-dev/recall/internal/engine"
	"github.com/recall-dev/recall/internal/logging"
	"github.com/recall-dev/recall/internal/query"
	"github.com/recall-dev/recall/internal/render"
	"github.com/recall-dev/recall/internal/scan"
	"github.com/recall-dev/recall/internal/tui"
)

func searchCmd() *cobra.Command {
	var (
		project   string
		branch    string
		kinds     []string
		tools     bool
		since     string
		until     string
		mode      string
		format    string
		limit     int
		contextN  int
		workers   int
		noRefresh bool
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search conversation history for a term",
		Long: `Search Claude Code transcripts with exact, tokenized or fuzzy matching.
Results are ranked by relevance, then recency. With a terminal on stdout an
interactive browser opens; piped output uses --format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel)

			f := query.Filter{
				Project:      scan.NormalizeScope(project),
				Branch:       branch,
				ToolActivity: tools,
			}
			if since != "" {
				if f.Since, err = query.ParseDate("since", since); err != nil {
					return err
				}
			}
			if until != "" {
				if f.Until, err = query.ParseDateEnd("until", until); err != nil {
					return err
				}
			}
			if f.Kinds, err = query.ParseKinds(kinds); err != nil {
				return err
			}

			if limit <= 0 {
				limit = cfg.DefaultLimit
			}
			if contextN < 0 {
				contextN = cfg.DefaultContext
			}
			if workers == 0 {
				workers = cfg.Workers
			}

			q := query.Query{
				Term:    args[0],
				Mode:    mode,
				Filter:  f,
				Limit:   limit,
				Context: contextN,
			}

			opts := engine.Options{Root: cfg.TranscriptRoot, Workers: workers}
			opts.Bounds = loadBounds(cfg, project, noRefresh)

			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			if interactive {
				// the TUI owns the terminal
				logging.InitQuiet()
			}

			rep, err := engine.Search(cmd.Context(), q, opts)
			if err != nil {
				return err
			}

			if interactive && format == "text" {
				return tui.Run(rep, q.Term)
			}

			fm, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			out, err := render.Report(rep, fm, render.Options{Color: interactive && !noColor})
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Filter by project scope (path or sanitized name)")
	cmd.Flags().StringVar(&branch, "branch", "", "Filter by git branch")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Filter by record kind (user/assistant/tool-invocation); repeatable")
	cmd.Flags().BoolVar(&tools, "tools", false, "Only records with tool activity")
	cmd.Flags().StringVar(&since, "since", "", "Records on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Records on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&mode, "mode", "exact", "Match strategy: exact, tokens or fuzzy")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or table")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = config default)")
	cmd.Flags().IntVar(&contextN, "context", -1, "Context records on each side of a match (-1 = config default)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent file workers (0 = available parallelism)")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Skip the catalog refresh before searching")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")

	return cmd
}

// loadBounds opens the session catalog and returns per-file timestamp
// bounds. The catalog is advisory: any failure here degrades to a full
// scan rather than failing the search.
func loadBounds(cfg *config.Config, project string, noRefresh bool) map[string]engine.Bounds {
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		logging.Warn().Err(err).Msg("catalog unavailable, scanning without bounds")
		return nil
	}
	defer cat.Close()

	if !noRefresh {
		files, err := scan.Locate(cfg.TranscriptRoot, project)
		if err == nil {
			if _, err := cat.Refresh(files, project); err != nil {
				logging.Warn().Err(err).Msg("catalog refresh failed")
			}
		}
	}

	all, err := cat.AllBounds()
	if err != nil {
		logging.Warn().Err(err).Msg("catalog bounds unavailable")
		return nil
	}
	bounds := make(map[string]engine.Bounds, len(all))
	for path, b := range all {
		bounds[path] = engine.Bounds{First: b.First, Last: b.Last}
	}
	return bounds
}
