// Package query defines the immutable search query value and compiles its
// filter set into a single predicate over record metadata. All filter
// validation happens here, synchronously, before any file is opened.
package query

import (
	"fmt"
	"time"

	"github.com/recall-dev/recall/internal/transcript"
)

// Filter is the metadata filter set of a query. Zero values mean "not set".
type Filter struct {
	Since        time.Time
	Until        time.Time
	Project      string // sanitized project scope
	Branch       string
	Kinds        []transcript.Kind
	ToolActivity bool
}

// Query is an immutable search request.
type Query struct {
	Term    string
	Mode    string // "exact", "tokens" or "fuzzy"; validated by match.ParseMode
	Filter  Filter
	Limit   int
	Context int
}

// InvalidFilterError reports a filter value that is out of domain. It is a
// query compilation error: surfaced to the caller before any I/O begins.
type InvalidFilterError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s=%q: %s", e.Key, e.Value, e.Reason)
}

// ParseDate parses a date filter value. Accepted layouts: YYYY-MM-DD and
// RFC3339. Anything else is an InvalidFilterError.
func ParseDate(key, s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, &InvalidFilterError{Key: key, Value: s, Reason: "expected YYYY-MM-DD or RFC3339"}
}

// ParseDateEnd parses a range-end date filter value. The range is inclusive,
// so a date-only value covers its whole day: it parses to the last instant
// of that day rather than midnight.
func ParseDateEnd(key, s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, &InvalidFilterError{Key: key, Value: s, Reason: "expected YYYY-MM-DD or RFC3339"}
}

// ParseKinds validates a kind allow-list. Unknown kind names fail fast
// instead of being silently dropped, which would broaden results. Summary
// records are session metadata, never searchable content, so allowing them
// here would compile a filter that can only ever match nothing.
func ParseKinds(names []string) ([]transcript.Kind, error) {
	var kinds []transcript.Kind
	for _, n := range names {
		k, ok := transcript.ParseKind(n)
		if !ok {
			return nil, &InvalidFilterError{Key: "kind", Value: n, Reason: "unknown record kind"}
		}
		if k == transcript.KindSummary {
			return nil, &InvalidFilterError{Key: "kind", Value: n, Reason: "summary records are session metadata, not searchable"}
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Predicate is a compiled boolean test over record metadata. scope is the
// project scope that owns the record's file. Predicates run before any text
// comparison: metadata checks are strictly cheaper than matching.
type Predicate func(rec *transcript.Record, scope string) bool

// Compile turns a filter set into one predicate function. It re-validates
// the filter so a hand-built Filter fails here rather than mid-scan.
func Compile(f Filter) (Predicate, error) {
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return nil, &InvalidFilterError{
			Key:    "until",
			Value:  f.Until.Format("2006-01-02"),
			Reason: "date range ends before it starts",
		}
	}
	for _, k := range f.Kinds {
		if _, ok := transcript.ParseKind(string(k)); !ok {
			return nil, &InvalidFilterError{Key: "kind", Value: string(k), Reason: "unknown record kind"}
		}
		if k == transcript.KindSummary {
			return nil, &InvalidFilterError{Key: "kind", Value: string(k), Reason: "summary records are session metadata, not searchable"}
		}
	}

	var kindSet map[transcript.Kind]bool
	if len(f.Kinds) > 0 {
		kindSet = make(map[transcript.Kind]bool, len(f.Kinds))
		for _, k := range f.Kinds {
			kindSet[k] = true
		}
	}

	return func(rec *transcript.Record, scope string) bool {
		if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
			return false
		}
		if f.Project != "" && scope != f.Project {
			return false
		}
		if f.Branch != "" && rec.Branch != f.Branch {
			return false
		}
		if kindSet != nil && !kindSet[rec.Kind] {
			return false
		}
		if f.ToolActivity && !transcript.HasToolActivity(rec) {
			return false
		}
		return true
	}, nil
}
