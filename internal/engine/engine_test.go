package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/recall-dev/recall/internal/query"
)

type line struct {
	ts      string
	content string
}

func writeTranscript(t *testing.T, root, project, session string, lines []line) string {
	t.Helper()
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var buf []byte
	for i, l := range lines {
		rec := fmt.Sprintf(
			`{"type":"user","uuid":"%s-u%d","timestamp":"%s","sessionId":"%s","message":{"content":%q}}`,
			session, i+1, l.ts, session, l.content)
		buf = append(buf, rec...)
		buf = append(buf, '\n')
	}
	path := filepath.Join(dir, session+".jsonl")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, q query.Query, opts Options) *Report {
	t.Helper()
	rep, err := Search(context.Background(), q, opts)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return rep
}

func baseQuery(term string) query.Query {
	return query.Query{Term: term, Mode: "exact", Limit: 10, Context: 0}
}

func TestSearchRanksByScoreThenRecency(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "alpha", []line{
		{"2025-06-01T10:00:00Z", "deploy the service"},
		{"2025-06-01T11:00:00Z", "deploy again"},
		{"2025-06-01T12:00:00Z", "nothing relevant"},
	})
	writeTranscript(t, root, "-p", "beta", []line{
		{"2025-06-02T09:00:00Z", "deploy to production"},
	})

	rep := run(t, baseQuery("deploy"), Options{Root: root})
	if rep.Status != StatusFound {
		t.Fatalf("status = %v", rep.Status)
	}
	if len(rep.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(rep.Results))
	}
	// equal scores rank by recency
	wantUUIDs := []string{"beta-u1", "alpha-u2", "alpha-u1"}
	for i, want := range wantUUIDs {
		if rep.Results[i].UUID != want {
			t.Errorf("result %d = %s, want %s", i, rep.Results[i].UUID, want)
		}
	}
}

func TestSearchLimitKeepsGlobalTop(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "alpha", []line{
		{"2025-06-01T10:00:00Z", "cache miss"},
		{"2025-06-03T10:00:00Z", "cache hit"},
		{"2025-06-05T10:00:00Z", "cache rebuild"},
	})
	writeTranscript(t, root, "-p", "beta", []line{
		{"2025-06-04T10:00:00Z", "cache flush"},
	})

	q := baseQuery("cache")
	q.Limit = 2
	rep := run(t, q, Options{Root: root, Workers: 4})

	if len(rep.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(rep.Results))
	}
	// the global top two by recency span both files
	if rep.Results[0].UUID != "alpha-u3" || rep.Results[1].UUID != "beta-u1" {
		t.Errorf("top 2 = %s, %s", rep.Results[0].UUID, rep.Results[1].UUID)
	}
}

// The result set must not depend on worker count.
func TestSearchConcurrencyTransparent(t *testing.T) {
	root := t.TempDir()
	for f := 0; f < 6; f++ {
		var lines []line
		for i := 0; i < 20; i++ {
			content := "filler text"
			if i%3 == 0 {
				content = "worker pool design"
			}
			lines = append(lines, line{
				fmt.Sprintf("2025-06-%02dT%02d:00:%02dZ", f+1, 8+i/6, i%60),
				content,
			})
		}
		writeTranscript(t, root, "-p", fmt.Sprintf("s%d", f), lines)
	}

	q := baseQuery("worker pool")
	q.Limit = 7
	q.Context = 1

	sequential := run(t, q, Options{Root: root, Workers: 1})
	concurrent := run(t, q, Options{Root: root, Workers: 4})

	if !reflect.DeepEqual(sequential.Results, concurrent.Results) {
		t.Errorf("results differ between workers=1 and workers=4:\n%+v\n%+v",
			sequential.Results, concurrent.Results)
	}
}

func TestSearchStatusTaxonomy(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "s1", []line{
		{"2025-06-01T10:00:00Z", "hello"},
	})
	if err := os.MkdirAll(filepath.Join(root, "-empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("found", func(t *testing.T) {
		rep := run(t, baseQuery("hello"), Options{Root: root})
		if rep.Status != StatusFound {
			t.Errorf("status = %v", rep.Status)
		}
	})

	t.Run("scanned but no matches", func(t *testing.T) {
		rep := run(t, baseQuery("zzzzzz"), Options{Root: root})
		if rep.Status != StatusNoMatches {
			t.Errorf("status = %v", rep.Status)
		}
	})

	t.Run("empty existing project is no-matches", func(t *testing.T) {
		q := baseQuery("hello")
		q.Filter.Project = "-empty"
		rep := run(t, q, Options{Root: root})
		if rep.Status != StatusNoMatches {
			t.Errorf("status = %v", rep.Status)
		}
	})

	t.Run("unknown project is no-candidates", func(t *testing.T) {
		q := baseQuery("hello")
		q.Filter.Project = "-nonexistent"
		rep := run(t, q, Options{Root: root})
		if rep.Status != StatusNoCandidates {
			t.Errorf("status = %v", rep.Status)
		}
	})

	t.Run("missing root is no-candidates", func(t *testing.T) {
		rep := run(t, baseQuery("hello"), Options{Root: filepath.Join(root, "nope")})
		if rep.Status != StatusNoCandidates {
			t.Errorf("status = %v", rep.Status)
		}
	})
}

func TestSearchCompilationErrors(t *testing.T) {
	root := t.TempDir()

	q := baseQuery("")
	if _, err := Search(context.Background(), q, Options{Root: root}); err == nil {
		t.Error("empty term accepted")
	}

	q = baseQuery("x")
	q.Mode = "regex"
	if _, err := Search(context.Background(), q, Options{Root: root}); err == nil {
		t.Error("unknown mode accepted")
	}

	q = baseQuery("x")
	q.Filter.Since = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	q.Filter.Until = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := Search(context.Background(), q, Options{Root: root}); err == nil {
		t.Error("inverted date range accepted")
	}
}

func TestSearchMalformedLinesWarnButDoNotAbort(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-p")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"type":"user","uuid":"u1","timestamp":"2025-06-01T10:00:00Z","message":{"content":"before the damage"}}
this line is not json
{"type":"user","uuid":"u2","timestamp":"2025-06-01T11:00:00Z","message":{"content":"after the damage"}}
`
	if err := os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rep := run(t, baseQuery("damage"), Options{Root: root})
	if len(rep.Results) != 2 {
		t.Errorf("got %d results, want records on both sides of the bad line", len(rep.Results))
	}
	if len(rep.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", rep.Warnings)
	}
	if rep.Warnings[0].Line != 2 {
		t.Errorf("warning line = %d, want 2", rep.Warnings[0].Line)
	}
}

func TestSearchContextWindows(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "s1", []line{
		{"2025-06-01T10:00:00Z", "one"},
		{"2025-06-01T10:00:01Z", "two"},
		{"2025-06-01T10:00:02Z", "the needle is here"},
		{"2025-06-01T10:00:03Z", "four"},
		{"2025-06-01T10:00:04Z", "five"},
	})

	q := baseQuery("needle")
	q.Context = 1
	rep := run(t, q, Options{Root: root})
	if len(rep.Results) != 1 {
		t.Fatalf("got %d results", len(rep.Results))
	}
	ctx := rep.Results[0].Context
	if len(ctx) != 3 {
		t.Fatalf("context = %+v, want 3 entries", ctx)
	}
	if ctx[0].Text != "two" || ctx[1].Text != "the needle is here" || ctx[2].Text != "four" {
		t.Errorf("context texts = %q %q %q", ctx[0].Text, ctx[1].Text, ctx[2].Text)
	}
	if !ctx[1].Match {
		t.Error("matched entry not flagged")
	}
}

func TestSearchSummaryAttachedToResults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "-p")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"type":"summary","summary":"Fixing the login flow"}
{"type":"user","uuid":"u1","timestamp":"2025-06-01T10:00:00Z","message":{"content":"the login bug"}}
`
	if err := os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rep := run(t, baseQuery("login"), Options{Root: root})
	if len(rep.Results) != 1 {
		t.Fatalf("got %d results, want 1 (summary records never match)", len(rep.Results))
	}
	if rep.Results[0].Summary != "Fixing the login flow" {
		t.Errorf("summary = %q", rep.Results[0].Summary)
	}
}

func TestSearchDateRangeFilter(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "s1", []line{
		{"2025-06-01T10:00:00Z", "event alpha"},
		{"2025-06-05T10:00:00Z", "event beta"},
		{"2025-06-09T10:00:00Z", "event gamma"},
	})

	q := baseQuery("event")
	q.Filter.Since = time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	q.Filter.Until = time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	rep := run(t, q, Options{Root: root})

	if len(rep.Results) != 1 || rep.Results[0].UUID != "s1-u2" {
		t.Errorf("results = %+v, want only the mid-range record", rep.Results)
	}
}

// A date-only until value is inclusive of its whole day.
func TestSearchUntilDateIsInclusive(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "s1", []line{
		{"2025-06-07T10:00:00Z", "event on the boundary day"},
		{"2025-06-08T10:00:00Z", "event past the boundary"},
	})

	until, err := query.ParseDateEnd("until", "2025-06-07")
	if err != nil {
		t.Fatal(err)
	}
	q := baseQuery("event")
	q.Filter.Until = until
	rep := run(t, q, Options{Root: root})

	if len(rep.Results) != 1 {
		t.Fatalf("got %d results, want 1: record on the until date must match", len(rep.Results))
	}
	if rep.Results[0].UUID != "s1-u1" {
		t.Errorf("result = %s, want s1-u1", rep.Results[0].UUID)
	}
}

func TestSearchPreFilterPrunesByBounds(t *testing.T) {
	root := t.TempDir()
	oldPath := writeTranscript(t, root, "-p", "old", []line{
		{"2025-01-01T10:00:00Z", "ancient event"},
	})
	writeTranscript(t, root, "-p", "new", []line{
		{"2025-06-01T10:00:00Z", "recent event"},
	})

	q := baseQuery("event")
	q.Filter.Since = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	opts := Options{
		Root: root,
		Bounds: map[string]Bounds{
			oldPath: {
				First: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
				Last:  time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			},
		},
	}
	rep := run(t, q, opts)

	if len(rep.Results) != 1 || rep.Results[0].UUID != "new-u1" {
		t.Errorf("results = %+v, want only the recent record", rep.Results)
	}
	if rep.Scanned != 1 {
		t.Errorf("scanned = %d, want 1 (old file pruned without opening)", rep.Scanned)
	}
	if rep.Pruned != 1 {
		t.Errorf("pruned = %d, want 1", rep.Pruned)
	}
}

func TestSearchCancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTranscript(t, root, "-p", "s1", []line{
		{"2025-06-01T10:00:00Z", "hello"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Search(ctx, baseQuery("hello"), Options{Root: root}); err == nil {
		t.Error("cancelled context returned no error")
	}
}
