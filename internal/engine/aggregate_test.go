package engine

import (
	"testing"
	"time"
)

func res(score float64, ts time.Time, path string, line int) Result {
	return Result{Score: score, Timestamp: ts, Path: path, Line: line}
}

func TestResultOrderingIsTotal(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	tests := []struct {
		name string
		a, b Result
	}{
		{"higher score first", res(300, t1, "a", 1), res(200, t2, "a", 1)},
		{"newer first at equal score", res(300, t2, "a", 1), res(300, t1, "a", 1)},
		{"path breaks timestamp ties", res(300, t1, "a", 1), res(300, t1, "b", 1)},
		{"line breaks path ties", res(300, t1, "a", 1), res(300, t1, "a", 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !less(&tt.a, &tt.b) {
				t.Error("a should sort before b")
			}
			if less(&tt.b, &tt.a) {
				t.Error("ordering is not antisymmetric")
			}
		})
	}
}

func TestAggregatorMergeKeepsTopN(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := newAggregator(2)

	agg.merge([]Result{res(100, t1, "a", 1), res(300, t1, "a", 2)})
	agg.merge([]Result{res(200, t1, "b", 1)})

	got := agg.snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Score != 300 || got[1].Score != 200 {
		t.Errorf("scores = %v, %v", got[0].Score, got[1].Score)
	}
}

func TestCannotBeat(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	maxScore := 300.0

	agg := newAggregator(2)
	if agg.cannotBeat(maxScore, t1) {
		t.Error("empty aggregator pruned a file")
	}

	agg.merge([]Result{res(300, t1, "a", 1), res(300, t1.Add(-time.Hour), "a", 2)})

	// a file bounded strictly before the floor cannot place
	if !agg.cannotBeat(maxScore, t1.Add(-2*time.Hour)) {
		t.Error("stale file not pruned")
	}
	// a file bounded at or after the floor still can
	if agg.cannotBeat(maxScore, t1.Add(-time.Hour)) {
		t.Error("file at the floor timestamp pruned; ties must still be scanned")
	}
	if agg.cannotBeat(maxScore, t1.Add(time.Hour)) {
		t.Error("newer file pruned")
	}

	// if the floor score is beatable, no file can be skipped
	lowAgg := newAggregator(1)
	lowAgg.merge([]Result{res(250, t1, "a", 1)})
	if lowAgg.cannotBeat(maxScore, t1.Add(-2*time.Hour)) {
		t.Error("pruned while a higher score was still possible")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	agg := newAggregator(5)
	agg.merge([]Result{res(300, t1, "a", 1)})

	snap := agg.snapshot()
	snap[0].Score = 0

	if agg.snapshot()[0].Score != 300 {
		t.Error("snapshot aliases internal state")
	}
}
