// Package catalog maintains a sqlite cache of per-file transcript metadata:
// project scope, session id, record count, and first/last record timestamps.
// The engine uses the timestamp bounds for cheap date pre-filtering and for
// rank-aware early cancellation. The catalog is advisory — a missing or
// stale catalog degrades to a full scan, never to wrong results.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recall-dev/recall/internal/scan"
	"github.com/recall-dev/recall/internal/transcript"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS files (
    path       TEXT PRIMARY KEY,
    project    TEXT NOT NULL,
    session_id TEXT NOT NULL,
    mtime      INTEGER NOT NULL DEFAULT 0,
    size       INTEGER NOT NULL DEFAULT 0,
    first_ts   TEXT NOT NULL DEFAULT '',
    last_ts    TEXT NOT NULL DEFAULT '',
    branch     TEXT NOT NULL DEFAULT '',
    cwd        TEXT NOT NULL DEFAULT '',
    summary    TEXT NOT NULL DEFAULT '',
    records    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS files_project ON files(project);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion should be bumped whenever file scanning logic changes, to
// force a full refresh of cached metadata.
const schemaVersion = "1"

const tsLayout = "2006-01-02T15:04:05Z"

type DB struct {
	db *sql.DB
}

func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}

	d := &DB{db: db}
	d.migrateSchemaVersion()
	return d, nil
}

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force a full re-scan by resetting freshness markers
		d.db.Exec("UPDATE files SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// FileInfo is the cached metadata for one transcript file.
type FileInfo struct {
	Path      string
	Project   string
	SessionID string
	Mtime     int64
	Size      int64
	FirstTS   time.Time
	LastTS    time.Time
	Branch    string
	Cwd       string
	Summary   string
	Records   int
}

// Bounds are a file's first/last record timestamps.
type Bounds struct {
	First time.Time
	Last  time.Time
}

// AllBounds returns the cached timestamp bounds keyed by file path.
func (d *DB) AllBounds() (map[string]Bounds, error) {
	rows, err := d.db.Query("SELECT path, first_ts, last_ts FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bounds := make(map[string]Bounds)
	for rows.Next() {
		var path, first, last string
		if err := rows.Scan(&path, &first, &last); err != nil {
			return nil, err
		}
		b := Bounds{First: parseTS(first), Last: parseTS(last)}
		if b.Last.IsZero() {
			continue // never bound a file we could not scan
		}
		bounds[path] = b
	}
	return bounds, rows.Err()
}

// Get returns the cached info for a path, or nil when unknown.
func (d *DB) Get(path string) (*FileInfo, error) {
	var fi FileInfo
	var first, last string
	err := d.db.QueryRow(
		`SELECT path, project, session_id, mtime, size, first_ts, last_ts, branch, cwd, summary, records
		 FROM files WHERE path = ?`, path,
	).Scan(&fi.Path, &fi.Project, &fi.SessionID, &fi.Mtime, &fi.Size,
		&first, &last, &fi.Branch, &fi.Cwd, &fi.Summary, &fi.Records)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fi.FirstTS = parseTS(first)
	fi.LastTS = parseTS(last)
	return &fi, nil
}

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// Refresh brings the catalog in sync with the located candidate files.
// Unchanged files (same mtime and size) are skipped; rows for files that no
// longer exist are pruned. Per-file scan errors are counted, not fatal.
//
// project limits pruning to that scope: when the candidate list was itself
// project-filtered, rows belonging to other projects are not candidates and
// must survive. An empty project prunes across the whole catalog.
func (d *DB) Refresh(files []scan.Candidate, project string) (Stats, error) {
	var stats Stats
	stats.Scanned = len(files)

	seen := make(map[string]struct{}, len(files))
	for _, c := range files {
		seen[c.Path] = struct{}{}

		prev, err := d.Get(c.Path)
		if err != nil {
			stats.Errors++
			continue
		}
		if prev != nil && prev.Mtime == c.Mtime.Unix() && prev.Size == c.Size {
			stats.Skipped++
			continue
		}

		fi, err := scanFile(c)
		if err != nil {
			stats.Errors++
			continue
		}
		if err := d.put(fi); err != nil {
			stats.Errors++
			continue
		}
		stats.Updated++
	}

	pruned, err := d.prune(seen, scan.NormalizeScope(project))
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

func (d *DB) put(fi *FileInfo) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO files
		 (path, project, session_id, mtime, size, first_ts, last_ts, branch, cwd, summary, records)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fi.Path, fi.Project, fi.SessionID, fi.Mtime, fi.Size,
		formatTS(fi.FirstTS), formatTS(fi.LastTS),
		fi.Branch, fi.Cwd, fi.Summary, fi.Records,
	)
	return err
}

func (d *DB) prune(seen map[string]struct{}, scope string) (int, error) {
	rows, err := d.db.Query("SELECT path, project FROM files")
	if err != nil {
		return 0, err
	}
	var stale []string
	for rows.Next() {
		var p, proj string
		if err := rows.Scan(&p, &proj); err != nil {
			rows.Close()
			return 0, err
		}
		if scope != "" && proj != scope {
			continue
		}
		if _, ok := seen[p]; !ok {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range stale {
		if _, err := d.db.Exec("DELETE FROM files WHERE path = ?", p); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// scanFile streams one transcript to collect its metadata bounds.
func scanFile(c scan.Candidate) (*FileInfo, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi := &FileInfo{
		Path:      c.Path,
		Project:   c.Project,
		SessionID: c.SessionID,
		Mtime:     c.Mtime.Unix(),
		Size:      c.Size,
	}

	dec := transcript.NewDecoder(f, c.SessionID)
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if rec.Kind == transcript.KindSummary {
			if rec.Summary != "" {
				fi.Summary = rec.Summary
			}
			continue
		}
		fi.Records++
		if fi.FirstTS.IsZero() {
			fi.FirstTS = rec.Timestamp
		}
		fi.LastTS = rec.Timestamp
		if fi.Branch == "" {
			fi.Branch = rec.Branch
		}
		if fi.Cwd == "" {
			fi.Cwd = rec.Cwd
		}
	}

	return fi, nil
}

// ProjectStat summarizes one project scope.
type ProjectStat struct {
	Project  string
	Sessions int
	Records  int
	LastTS   time.Time
}

func (d *DB) Projects() ([]ProjectStat, error) {
	rows, err := d.db.Query(
		`SELECT project, COUNT(*), COALESCE(SUM(records), 0), COALESCE(MAX(last_ts), '')
		 FROM files GROUP BY project ORDER BY MAX(last_ts) DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ProjectStat
	for rows.Next() {
		var ps ProjectStat
		var last string
		if err := rows.Scan(&ps.Project, &ps.Sessions, &ps.Records, &last); err != nil {
			return nil, err
		}
		ps.LastTS = parseTS(last)
		stats = append(stats, ps)
	}
	return stats, rows.Err()
}

func (d *DB) FileCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n)
	return n, err
}

func (d *DB) RecordCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COALESCE(SUM(records), 0) FROM files").Scan(&n)
	return n, err
}

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
