package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/recall-dev/recall/internal/scan"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func writeTranscript(t *testing.T, root, project, session string, n int) scan.Candidate {
	t.Helper()
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	var buf []byte
	buf = append(buf, `{"type":"summary","summary":"a session about testing"}`...)
	buf = append(buf, '\n')
	for i := 0; i < n; i++ {
		rec := fmt.Sprintf(
			`{"type":"user","uuid":"u%d","timestamp":"2025-06-01T10:00:%02dZ","gitBranch":"main","cwd":"/work","message":{"content":"record %d"}}`,
			i, i, i)
		buf = append(buf, rec...)
		buf = append(buf, '\n')
	}
	path := filepath.Join(dir, session+".jsonl")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return scan.Candidate{
		Path:      path,
		Project:   project,
		SessionID: session,
		Mtime:     info.ModTime(),
		Size:      info.Size(),
	}
}

func TestRefreshScansAndCaches(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	c := writeTranscript(t, root, "-p", "s1", 3)

	stats, err := d.Refresh([]scan.Candidate{c}, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if stats.Updated != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}

	fi, err := d.Get(c.Path)
	if err != nil || fi == nil {
		t.Fatalf("Get: %v, %v", fi, err)
	}
	if fi.Records != 3 {
		t.Errorf("records = %d, want 3 (summary excluded)", fi.Records)
	}
	if fi.Summary != "a session about testing" {
		t.Errorf("summary = %q", fi.Summary)
	}
	if fi.Branch != "main" || fi.Cwd != "/work" {
		t.Errorf("branch/cwd = %q/%q", fi.Branch, fi.Cwd)
	}
	wantFirst := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	wantLast := time.Date(2025, 6, 1, 10, 0, 2, 0, time.UTC)
	if !fi.FirstTS.Equal(wantFirst) || !fi.LastTS.Equal(wantLast) {
		t.Errorf("bounds = %v..%v", fi.FirstTS, fi.LastTS)
	}
}

func TestRefreshSkipsUnchangedFiles(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	c := writeTranscript(t, root, "-p", "s1", 2)

	if _, err := d.Refresh([]scan.Candidate{c}, ""); err != nil {
		t.Fatal(err)
	}
	stats, err := d.Refresh([]scan.Candidate{c}, "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 || stats.Updated != 0 {
		t.Errorf("second refresh stats = %+v, want skip", stats)
	}
}

func TestRefreshPrunesDeletedFiles(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	c1 := writeTranscript(t, root, "-p", "s1", 1)
	c2 := writeTranscript(t, root, "-p", "s2", 1)

	if _, err := d.Refresh([]scan.Candidate{c1, c2}, ""); err != nil {
		t.Fatal(err)
	}

	stats, err := d.Refresh([]scan.Candidate{c1}, "")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned != 1 {
		t.Errorf("pruned = %d, want 1", stats.Pruned)
	}
	fi, err := d.Get(c2.Path)
	if err != nil {
		t.Fatal(err)
	}
	if fi != nil {
		t.Errorf("pruned file still cached: %+v", fi)
	}
}

func TestRefreshScopedPruneLeavesOtherProjects(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	a := writeTranscript(t, root, "-alpha", "s1", 1)
	b := writeTranscript(t, root, "-beta", "s2", 1)

	if _, err := d.Refresh([]scan.Candidate{a, b}, ""); err != nil {
		t.Fatal(err)
	}

	// a project-filtered refresh sees only that project's files; rows
	// belonging to other projects must survive the prune
	stats, err := d.Refresh([]scan.Candidate{a}, "-alpha")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned != 0 {
		t.Errorf("pruned = %d, want 0", stats.Pruned)
	}
	n, err := d.FileCount()
	if err != nil || n != 2 {
		t.Errorf("FileCount = %d, %v, want 2", n, err)
	}

	// within the scope, stale rows are still pruned
	if err := os.Remove(a.Path); err != nil {
		t.Fatal(err)
	}
	stats, err = d.Refresh(nil, "-alpha")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned != 1 {
		t.Errorf("pruned = %d, want 1", stats.Pruned)
	}
	fi, err := d.Get(b.Path)
	if err != nil || fi == nil {
		t.Errorf("other project's row lost: %v, %v", fi, err)
	}
}

func TestRefreshScopeAcceptsRawPaths(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	a := writeTranscript(t, root, "-home-alice-api", "s1", 1)
	b := writeTranscript(t, root, "-home-alice-web", "s2", 1)

	if _, err := d.Refresh([]scan.Candidate{a, b}, ""); err != nil {
		t.Fatal(err)
	}

	// the scope may arrive as an unsanitized absolute path
	stats, err := d.Refresh([]scan.Candidate{a}, "/home/alice/api")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pruned != 0 {
		t.Errorf("pruned = %d, want 0", stats.Pruned)
	}
	if n, _ := d.FileCount(); n != 2 {
		t.Errorf("FileCount = %d, want 2", n)
	}
}

func TestAllBoundsSkipsUnscannedFiles(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	c := writeTranscript(t, root, "-p", "s1", 2)

	// a file whose scan produced no records must not publish bounds
	empty := filepath.Join(root, "-p", "empty.jsonl")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(empty)
	ce := scan.Candidate{Path: empty, Project: "-p", SessionID: "empty", Mtime: info.ModTime(), Size: info.Size()}

	if _, err := d.Refresh([]scan.Candidate{c, ce}, ""); err != nil {
		t.Fatal(err)
	}

	bounds, err := d.AllBounds()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := bounds[c.Path]; !ok {
		t.Error("scanned file missing from bounds")
	}
	if _, ok := bounds[empty]; ok {
		t.Error("empty file published bounds")
	}
}

func TestProjectsAggregation(t *testing.T) {
	d := openTestDB(t)
	root := t.TempDir()
	c1 := writeTranscript(t, root, "-alpha", "s1", 2)
	c2 := writeTranscript(t, root, "-alpha", "s2", 3)
	c3 := writeTranscript(t, root, "-beta", "s3", 1)

	if _, err := d.Refresh([]scan.Candidate{c1, c2, c3}, ""); err != nil {
		t.Fatal(err)
	}

	stats, err := d.Projects()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d projects, want 2", len(stats))
	}
	byName := map[string]ProjectStat{}
	for _, ps := range stats {
		byName[ps.Project] = ps
	}
	if a := byName["-alpha"]; a.Sessions != 2 || a.Records != 5 {
		t.Errorf("-alpha = %+v", a)
	}
	if b := byName["-beta"]; b.Sessions != 1 || b.Records != 1 {
		t.Errorf("-beta = %+v", b)
	}

	files, err := d.FileCount()
	if err != nil || files != 3 {
		t.Errorf("FileCount = %d, %v", files, err)
	}
	recs, err := d.RecordCount()
	if err != nil || recs != 6 {
		t.Errorf("RecordCount = %d, %v", recs, err)
	}
}

func TestGetUnknownPathReturnsNil(t *testing.T) {
	d := openTestDB(t)
	fi, err := d.Get("/nowhere/x.jsonl")
	if err != nil || fi != nil {
		t.Errorf("Get unknown = %v, %v, want nil/nil", fi, err)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 30, 5, 0, time.UTC)
	if got := parseTS(formatTS(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
	if !parseTS("").IsZero() {
		t.Error("empty string parsed as non-zero time")
	}
	if formatTS(time.Time{}) != "" {
		t.Error("zero time formatted as non-empty")
	}
}
