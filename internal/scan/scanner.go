// Package scan locates candidate transcript files on disk without opening
// them. Layout: one directory per project under the root, named by the
// sanitized project path, containing one .jsonl file per session.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Candidate is one transcript file that may contain matching records.
// Mtime is a sound upper bound on the timestamps of the records inside:
// transcripts are append-only, so nothing in the file postdates its last
// modification.
type Candidate struct {
	Path      string
	Project   string // sanitized project scope (directory name)
	SessionID string // file name without the .jsonl extension
	Mtime     time.Time
	Size      int64
}

// SanitizeScope encodes an absolute path as a project scope directory name
// by replacing every path separator with '-'. The encoding is lossy: a path
// that itself contains '-' collides with a sibling path. Scope names are
// therefore only ever compared for equality, never mapped back to paths.
func SanitizeScope(path string) string {
	return strings.ReplaceAll(filepath.Clean(path), string(os.PathSeparator), "-")
}

// NormalizeScope accepts either a ready-made scope name or an absolute
// filesystem path and returns the scope name.
func NormalizeScope(s string) string {
	if strings.ContainsRune(s, os.PathSeparator) {
		return SanitizeScope(s)
	}
	return s
}

// Locate enumerates candidate files under root. An empty project matches
// every project directory. Date pre-filtering is the caller's business:
// the engine prunes by Mtime or by catalog bounds, and needs the unpruned
// set to tell "no candidates" apart from "scanned and found nothing".
//
// A missing root or an unmatched project yields an empty set, not an error.
func Locate(root, project string) ([]Candidate, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	scope := NormalizeScope(project)

	var files []Candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if scope != "" && e.Name() != scope {
			continue
		}
		dir := filepath.Join(root, e.Name())
		sessions, err := os.ReadDir(dir)
		if err != nil {
			continue // unreadable project dir, skip
		}
		for _, s := range sessions {
			if s.IsDir() || filepath.Ext(s.Name()) != ".jsonl" {
				continue
			}
			info, err := s.Info()
			if err != nil {
				continue
			}
			files = append(files, Candidate{
				Path:      filepath.Join(dir, s.Name()),
				Project:   e.Name(),
				SessionID: strings.TrimSuffix(s.Name(), ".jsonl"),
				Mtime:     info.ModTime(),
				Size:      info.Size(),
			})
		}
	}

	// newest first; also the deterministic scan order for ranking
	sort.Slice(files, func(i, j int) bool {
		if !files[i].Mtime.Equal(files[j].Mtime) {
			return files[i].Mtime.After(files[j].Mtime)
		}
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// HasScope reports whether a directory for the given project scope exists,
// regardless of whether it contains any session files.
func HasScope(root, project string) bool {
	scope := NormalizeScope(project)
	if scope == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(root, scope))
	return err == nil && info.IsDir()
}
