// Package window assembles bounded context windows around matches while a
// transcript streams by. The decoder is forward-only, so the assembler keeps
// a sliding buffer of the last N records instead of re-reading the file:
// per-match cost stays constant regardless of file size.
package window

import (
	"time"

	"github.com/recall-dev/recall/internal/transcript"
)

// Entry is the minimal copied view of a neighboring record kept for
// display. Full records are discarded once a file's scan completes.
type Entry struct {
	UUID      string          `json:"uuid"`
	Kind      transcript.Kind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Text      string          `json:"text"`
	Match     bool            `json:"match,omitempty"` // the matched record itself
}

// FromRecord copies the display fields of a record into an Entry.
func FromRecord(rec *transcript.Record) Entry {
	return Entry{
		UUID:      rec.UUID,
		Kind:      rec.Kind,
		Timestamp: rec.Timestamp,
		Text:      rec.Content,
	}
}

type pending struct {
	entries []Entry
	after   int // following records still wanted
	done    func([]Entry)
}

// Assembler tracks one file's stream. Not safe for concurrent use; each
// worker owns its own Assembler, matching the one-worker-per-file model.
type Assembler struct {
	n      int
	before []Entry // sliding buffer of the last n observed entries
	open   []*pending
}

// New returns an Assembler producing windows of up to n records on each
// side of a match.
func New(n int) *Assembler {
	if n < 0 {
		n = 0
	}
	return &Assembler{n: n}
}

// Observe feeds the next decoded record through the assembler. If the
// record is a match, done is non-nil and will be called exactly once with
// the completed window — either after n more records arrive or at Flush.
// The window always contains the match itself, in stream order.
func (a *Assembler) Observe(e Entry, done func([]Entry)) {
	// feed windows opened by earlier matches, completing any that filled up
	remaining := a.open[:0]
	for _, p := range a.open {
		p.entries = append(p.entries, e)
		p.after--
		if p.after == 0 {
			p.done(p.entries)
		} else {
			remaining = append(remaining, p)
		}
	}
	a.open = remaining

	if done != nil {
		hit := e
		hit.Match = true
		entries := make([]Entry, 0, 2*a.n+1)
		entries = append(entries, a.before...)
		entries = append(entries, hit)
		p := &pending{entries: entries, after: a.n, done: done}
		if p.after == 0 {
			p.done(p.entries)
		} else {
			a.open = append(a.open, p)
		}
	}

	if a.n == 0 {
		return
	}
	if len(a.before) == a.n {
		copy(a.before, a.before[1:])
		a.before[len(a.before)-1] = e
	} else {
		a.before = append(a.before, e)
	}
}

// Pending reports how many windows are still waiting on following records.
func (a *Assembler) Pending() int {
	return len(a.open)
}

// Flush completes all windows still waiting on following records. Call once
// at end of file; windows never cross a file boundary.
func (a *Assembler) Flush() {
	for _, p := range a.open {
		p.done(p.entries)
	}
	a.open = nil
}
