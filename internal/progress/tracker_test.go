package progress

import (
	"testing"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestPercentClampedAndMonotonic(t *testing.T) {
	if Percent(0, 0) != 0 {
		t.Fatal("0/0 should be 0")
	}
	if Percent(5, 0) != 0 || Percent(-1, 10) != 0 {
		t.Fatal("invalid inputs should clamp to 0")
	}
	if Percent(15, 10) != 100 {
		t.Fatal("overshoot should clamp to 100")
	}

	for _, total := range []int{1, 3, 7, 100, 2741} {
		prev := -1
		for current := 0; current <= total; current++ {
			p := Percent(current, total)
			if p < prev || p < 0 || p > 100 {
				t.Fatalf("non-monotonic or out of range: %d/%d -> %d (prev %d)", current, total, p, prev)
			}
			prev = p
		}
		if prev != 100 {
			t.Fatalf("expected 100 at completion for total %d, got %d", total, prev)
		}
	}
}

func TestUpdateRendersOnlyOnLabelChange(t *testing.T) {
	var rendered []Snapshot
	tr := NewTracker(SinkFunc(func(s Snapshot) { rendered = append(rendered, s) }))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = fixedClock(start.Add(3 * time.Second))

	var last string
	tr.Update(1, 3, start, &last, "Default types")
	tr.Update(1, 3, start, &last, "Default types")
	tr.Update(2, 3, start, &last, "Default types")

	if len(rendered) != 2 {
		t.Fatalf("expected 2 renders, got %d", len(rendered))
	}
	if last != "Default types 66% (2 of 3) 00:00:03" {
		t.Fatalf("unexpected label %q", last)
	}
}

func TestGroupCountersAccumulateAcrossStages(t *testing.T) {
	var snaps []Snapshot
	tr := NewTracker(SinkFunc(func(s Snapshot) { snaps = append(snaps, s) }))

	first := tr.Begin("Default types")
	first.AddTotal(2)
	first.Advance()
	first.Advance()
	first.Finish()

	second := tr.Begin("Foreign key constraints")
	second.AddTotal(2)
	second.Advance()

	gc, gt := tr.Group()
	if gc != 3 || gt != 4 {
		t.Fatalf("expected group 3/4, got %d/%d", gc, gt)
	}
	last := snaps[len(snaps)-1]
	if last.GroupPercent != 75 || last.Percent != 50 {
		t.Fatalf("unexpected snapshot: %#v", last)
	}

	prevCurrent, prevTotal := 0, 0
	for _, s := range snaps {
		if s.GroupCurrent < prevCurrent || s.GroupTotal < prevTotal {
			t.Fatalf("group counters went backwards: %#v", s)
		}
		prevCurrent, prevTotal = s.GroupCurrent, s.GroupTotal
	}
}

func TestZeroObjectStageFinishesAtHundred(t *testing.T) {
	var snaps []Snapshot
	tr := NewTracker(SinkFunc(func(s Snapshot) { snaps = append(snaps, s) }))

	st := tr.Begin("Check constraints")
	st.AddTotal(0)
	snap := st.Finish()

	if snap.Percent != 100 || !snap.Done {
		t.Fatalf("expected completed 100%% snapshot, got %#v", snap)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected one render, got %d", len(snaps))
	}
}

func TestPrefix(t *testing.T) {
	cases := map[string]string{
		"foreign key constraint": "Foreign key constraints",
		"default type":           "Default types",
		"check constraint":       "Check constraints",
	}
	for in, want := range cases {
		if got := Prefix(in); got != want {
			t.Fatalf("Prefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAbortKeepsPercentWhereStageStopped(t *testing.T) {
	var snaps []Snapshot
	tr := NewTracker(SinkFunc(func(s Snapshot) { snaps = append(snaps, s) }))

	st := tr.Begin("Foreign key constraints")
	st.AddTotal(5)
	st.Advance()
	snap := st.Abort()

	if !snap.Done || !snap.Aborted {
		t.Fatalf("expected aborted final snapshot, got %#v", snap)
	}
	if snap.Percent != 20 || snap.Current != 1 || snap.Total != 5 {
		t.Fatalf("expected 1 of 5 at 20%%, got %#v", snap)
	}
	if last := snaps[len(snaps)-1]; !last.Aborted {
		t.Fatalf("expected sink to receive the aborted frame, got %#v", last)
	}

	empty := tr.Begin("Default types").Abort()
	if empty.Percent != 0 {
		t.Fatalf("expected aborted empty stage to stay at 0%%, got %d", empty.Percent)
	}
}
