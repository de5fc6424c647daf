package engine

import (
	"sort"
	"sync"
	"time"
)

// less is the global result ordering: descending score, descending
// timestamp, then stable file/line keys. The tail keys make the order total,
// which is what keeps concurrent scans byte-identical to a sequential one.
func less(a, b *Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Line < b.Line
}

func sortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool {
		return less(&rs[i], &rs[j])
	})
}

// aggregator is the only state shared between workers. Every mutation goes
// through one mutex-serialized merge.
type aggregator struct {
	mu      sync.Mutex
	limit   int
	results []Result
}

func newAggregator(limit int) *aggregator {
	return &aggregator{limit: limit}
}

func (a *aggregator) merge(batch []Result) {
	if len(batch) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, batch...)
	sortResults(a.results)
	if len(a.results) > a.limit {
		a.results = a.results[:a.limit]
	}
}

// cannotBeat reports whether a file whose records all predate bound could
// still place a result: only when the set is full, its floor already holds
// the strategy's maximum score, and the floor is strictly newer than bound.
// The floor only ever rises, so a true answer stays true.
func (a *aggregator) cannotBeat(maxScore float64, bound time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.results) < a.limit {
		return false
	}
	floor := &a.results[len(a.results)-1]
	return floor.Score >= maxScore && bound.Before(floor.Timestamp)
}

func (a *aggregator) snapshot() []Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Result, len(a.results))
	copy(out, a.results)
	return out
}
