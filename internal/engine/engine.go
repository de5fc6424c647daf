// Package engine executes a compiled search query over candidate transcript
// files: one worker per file on a bounded pool, all matches merged through a
// single serialized aggregator. The emitted result set is identical to what
// a sequential scan of the same files would produce — concurrency changes
// wall-clock time, never results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recall-dev/recall/internal/logging"
	"github.com/recall-dev/recall/internal/match"
	"github.com/recall-dev/recall/internal/query"
	"github.com/recall-dev/recall/internal/scan"
	"github.com/recall-dev/recall/internal/transcript"
	"github.com/recall-dev/recall/internal/window"
)

const defaultLimit = 100

// Status distinguishes "nothing could have matched" from "we looked and
// found nothing".
type Status int

const (
	// StatusFound means the result set is non-empty.
	StatusFound Status = iota
	// StatusNoMatches means candidate files were scanned and none matched.
	StatusNoMatches
	// StatusNoCandidates means no file survived the project/date pre-filter.
	StatusNoCandidates
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNoMatches:
		return "no matches"
	case StatusNoCandidates:
		return "no candidates"
	}
	return "unknown"
}

// Warning is a non-fatal per-file or per-line problem encountered during a
// scan. Line is 0 for file-level warnings.
type Warning struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Msg  string `json:"msg"`
}

// Result is one ranked match with its assembled context window.
type Result struct {
	Project   string          `json:"project"`
	Path      string          `json:"path"`
	SessionID string          `json:"sessionId"`
	UUID      string          `json:"uuid"`
	Kind      transcript.Kind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Branch    string          `json:"branch,omitempty"`
	Cwd       string          `json:"cwd,omitempty"`
	Content   string          `json:"content"`
	Line      int             `json:"line"`
	Span      match.Span      `json:"span"`
	Score     float64         `json:"score"`
	Summary   string          `json:"summary,omitempty"`
	Context   []window.Entry  `json:"context,omitempty"`
}

// Report is the outcome of one query execution.
type Report struct {
	Status   Status
	Results  []Result
	Warnings []Warning
	Scanned  int // files decoded
	Pruned   int // files skipped by date pre-filter or rank-aware cancellation
}

// Bounds are a file's known first/last record timestamps, typically from
// the catalog. Tighter than mtime, which only bounds from above.
type Bounds struct {
	First time.Time
	Last  time.Time
}

// Options configure query execution.
type Options struct {
	Root    string
	Workers int               // 0 = available parallelism
	Bounds  map[string]Bounds // optional per-file timestamp bounds by path
}

// Search compiles and executes a query. Compilation errors (invalid filter,
// bad strategy, empty term) surface here before any file I/O. Per-file and
// per-line failures never abort the search; they come back as warnings.
func Search(ctx context.Context, q query.Query, opts Options) (*Report, error) {
	pred, err := query.Compile(q.Filter)
	if err != nil {
		return nil, err
	}
	mode, err := match.ParseMode(q.Mode)
	if err != nil {
		return nil, err
	}
	matcher, err := match.New(q.Term, mode)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	all, err := scan.Locate(opts.Root, q.Filter.Project)
	if err != nil {
		return nil, fmt.Errorf("locate transcripts: %w", err)
	}
	if len(all) == 0 {
		// an existing-but-empty project directory means the scan ran and
		// found nothing, which is distinct from "no project matched"
		if q.Filter.Project != "" && scan.HasScope(opts.Root, q.Filter.Project) {
			return &Report{Status: StatusNoMatches}, nil
		}
		return &Report{Status: StatusNoCandidates}, nil
	}

	files, pruned := preFilter(all, q.Filter, opts.Bounds)
	if len(files) == 0 {
		return &Report{Status: StatusNoCandidates, Pruned: pruned}, nil
	}
	sortByBound(files, opts.Bounds)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	agg := newAggregator(limit)
	var (
		mu       sync.Mutex
		warnings []Warning
		scanned  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	maxScore := matcher.MaxScore()
	for i, cand := range files {
		// files are ordered by descending timestamp bound, so once one file
		// cannot beat the floor, none of the rest can either
		if agg.cannotBeat(maxScore, upperBound(cand, opts.Bounds)) {
			logging.Debug().Int("files", len(files)-i).Msg("rank-aware cancellation")
			break
		}
		cand := cand
		g.Go(func() error {
			// re-check: the floor may have risen while this worker queued
			if agg.cannotBeat(maxScore, upperBound(cand, opts.Bounds)) {
				return nil
			}
			results, warns := scanFile(gctx, cand, pred, matcher, q, limit)
			agg.merge(results)
			mu.Lock()
			scanned++
			warnings = append(warnings, warns...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{
		Results:  agg.snapshot(),
		Warnings: warnings,
		Scanned:  scanned,
		Pruned:   len(all) - scanned,
	}
	if len(rep.Results) > 0 {
		rep.Status = StatusFound
	} else {
		rep.Status = StatusNoMatches
	}
	return rep, nil
}

// preFilter drops files whose timestamp bounds fall entirely outside the
// query's date range. Catalog bounds allow pruning on both ends; without
// them only the append-only mtime upper bound applies.
func preFilter(files []scan.Candidate, f query.Filter, bounds map[string]Bounds) (kept []scan.Candidate, pruned int) {
	for _, c := range files {
		if b, ok := bounds[c.Path]; ok {
			if !f.Since.IsZero() && b.Last.Before(f.Since) {
				pruned++
				continue
			}
			if !f.Until.IsZero() && b.First.After(f.Until) {
				pruned++
				continue
			}
		} else if !f.Since.IsZero() && c.Mtime.Before(f.Since) {
			pruned++
			continue
		}
		kept = append(kept, c)
	}
	return kept, pruned
}

// upperBound is the newest timestamp any record in the file can carry.
func upperBound(c scan.Candidate, bounds map[string]Bounds) time.Time {
	if b, ok := bounds[c.Path]; ok {
		return b.Last
	}
	return c.Mtime
}

// sortByBound orders files newest-bound first, the order required for
// rank-aware cancellation. Locate already sorts by mtime; catalog bounds
// can disagree with mtime, so re-sort.
func sortByBound(files []scan.Candidate, bounds map[string]Bounds) {
	sort.Slice(files, func(i, j int) bool {
		ab, bb := upperBound(files[i], bounds), upperBound(files[j], bounds)
		if !ab.Equal(bb) {
			return ab.After(bb)
		}
		return files[i].Path < files[j].Path
	})
}

// scanFile decodes one transcript, applying predicate then matcher to each
// record and assembling context windows as the stream flows. Workers never
// share state; everything returned here is merged by the caller.
func scanFile(ctx context.Context, cand scan.Candidate, pred query.Predicate, matcher *match.Matcher, q query.Query, limit int) ([]Result, []Warning) {
	f, err := os.Open(cand.Path)
	if err != nil {
		logging.Warn().Str("path", cand.Path).Err(err).Msg("unreadable transcript")
		return nil, []Warning{{Path: cand.Path, Msg: fmt.Sprintf("unreadable file: %v", err)}}
	}
	defer f.Close()

	dec := transcript.NewDecoder(f, cand.SessionID)
	asm := window.New(q.Context)

	var (
		results []*Result
		summary string
	)

	for {
		// cooperative cancellation at line boundaries only, never mid-record
		if ctx.Err() != nil {
			return nil, nil
		}

		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			asm.Flush()
			return collect(results, summary, limit), append(decodeWarnings(cand.Path, dec),
				Warning{Path: cand.Path, Msg: fmt.Sprintf("read aborted: %v", err)})
		}

		if rec.Kind == transcript.KindSummary {
			if summary == "" {
				summary = rec.Summary
			}
			continue
		}

		// timestamps are non-decreasing within a file: once past the range
		// end nothing further can match, so stop as soon as no context
		// window still needs records
		if !q.Filter.Until.IsZero() && rec.Timestamp.After(q.Filter.Until) && asm.Pending() == 0 {
			break
		}

		var done func([]window.Entry)
		if pred(&rec, cand.Project) {
			if m, ok := matcher.Match(rec.Content); ok {
				r := &Result{
					Project:   cand.Project,
					Path:      cand.Path,
					SessionID: rec.SessionID,
					UUID:      rec.UUID,
					Kind:      rec.Kind,
					Timestamp: rec.Timestamp,
					Branch:    rec.Branch,
					Cwd:       rec.Cwd,
					Content:   rec.Content,
					Line:      rec.Line,
					Span:      m.Span,
					Score:     m.Score,
				}
				results = append(results, r)
				done = func(entries []window.Entry) { r.Context = entries }
			}
		}
		asm.Observe(window.FromRecord(&rec), done)
	}
	asm.Flush()

	return collect(results, summary, limit), decodeWarnings(cand.Path, dec)
}

// collect materializes a file's matches: attach the session summary, order
// them, and keep only what could still place globally.
func collect(results []*Result, summary string, limit int) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		r.Summary = summary
		out = append(out, *r)
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func decodeWarnings(path string, dec *transcript.Decoder) []Warning {
	var ws []Warning
	for _, w := range dec.Warnings() {
		logging.Debug().Str("path", path).Int("line", w.Line).Err(w.Err).Msg("skipped line")
		ws = append(ws, Warning{Path: path, Line: w.Line, Msg: w.Err.Error()})
	}
	return ws
}
