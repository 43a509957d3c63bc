// Package progress reports one continuous percentage across the sequential
// object type stages of a run.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/mmrzaf/sqribe/internal/timeutil"
)

// Snapshot is what a Sink receives for each label change.
type Snapshot struct {
	Prefix       string
	Current      int
	Total        int
	Percent      int
	GroupCurrent int
	GroupTotal   int
	GroupPercent int
	Elapsed      time.Duration
	Label        string
	Done         bool
	Aborted      bool
}

type Sink interface {
	Render(s Snapshot)
}

type SinkFunc func(s Snapshot)

func (f SinkFunc) Render(s Snapshot) { f(s) }

type nopSink struct{}

func (nopSink) Render(Snapshot) {}

// NopSink discards every snapshot.
var NopSink Sink = nopSink{}

// Tracker owns the run-wide counters. Stages add to them; they never go
// down.
type Tracker struct {
	mu           sync.Mutex
	groupCurrent int
	groupTotal   int
	sink         Sink
	now          func() time.Time
}

func NewTracker(sink Sink) *Tracker {
	if sink == nil {
		sink = NopSink
	}
	return &Tracker{sink: sink, now: time.Now}
}

// Percent returns current/total as a whole percentage clamped to [0,100].
// 0/0 is 0.
func Percent(current, total int) int {
	if total <= 0 || current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int(int64(current) * 100 / int64(total))
}

// Group returns the run-wide counters.
func (t *Tracker) Group() (current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.groupCurrent, t.groupTotal
}

// Update computes the label for one stage and renders it when it differs
// from *lastLabel, which is then updated.
func (t *Tracker) Update(current, total int, startedAt time.Time, lastLabel *string, prefix string) Snapshot {
	return t.update(current, total, startedAt, lastLabel, prefix, false, false)
}

func (t *Tracker) update(current, total int, startedAt time.Time, lastLabel *string, prefix string, done, aborted bool) Snapshot {
	t.mu.Lock()
	gc, gt := t.groupCurrent, t.groupTotal
	elapsed := t.now().Sub(startedAt)
	t.mu.Unlock()

	pct := Percent(current, total)
	if done && !aborted && total == 0 {
		pct = 100
	}
	snap := Snapshot{
		Prefix:       prefix,
		Current:      current,
		Total:        total,
		Percent:      pct,
		GroupCurrent: gc,
		GroupTotal:   gt,
		GroupPercent: Percent(gc, gt),
		Elapsed:      elapsed,
		Done:         done,
		Aborted:      aborted,
	}
	snap.Label = FormatLabel(prefix, pct, current, total, elapsed)

	if lastLabel != nil && *lastLabel == snap.Label && !done {
		return snap
	}
	if lastLabel != nil {
		*lastLabel = snap.Label
	}
	t.sink.Render(snap)
	return snap
}

// FormatLabel renders e.g. "Default types 45% (9 of 20) 00:00:03".
func FormatLabel(prefix string, pct, current, total int, elapsed time.Duration) string {
	return fmt.Sprintf("%s %d%% (%s of %s) %s",
		prefix, pct, humanize.Comma(int64(current)), humanize.Comma(int64(total)), timeutil.FormatElapsed(elapsed))
}

// Prefix turns a singular object name into the sentence-cased plural used
// as a label prefix: "foreign key constraint" -> "Foreign key constraints".
func Prefix(objectName string) string {
	plural := english.PluralWord(2, strings.TrimSpace(objectName), "")
	r, size := utf8.DecodeRuneInString(plural)
	if r == utf8.RuneError {
		return plural
	}
	return string(unicode.ToUpper(r)) + plural[size:]
}

// Stage tracks one object type invocation.
type Stage struct {
	tracker   *Tracker
	prefix    string
	startedAt time.Time
	current   int
	total     int
	lastLabel string
}

func (t *Tracker) Begin(prefix string) *Stage {
	return &Stage{tracker: t, prefix: prefix, startedAt: t.now()}
}

// AddTotal grows the stage and run-wide denominators.
func (s *Stage) AddTotal(n int) {
	if n <= 0 {
		return
	}
	s.tracker.mu.Lock()
	s.tracker.groupTotal += n
	s.tracker.mu.Unlock()
	s.total += n
}

// Advance counts one processed object and reports progress.
func (s *Stage) Advance() Snapshot {
	s.tracker.mu.Lock()
	s.tracker.groupCurrent++
	s.tracker.mu.Unlock()
	s.current++
	return s.tracker.update(s.current, s.total, s.startedAt, &s.lastLabel, s.prefix, false, false)
}

// Finish renders the final state of the stage. A stage with nothing to do
// reports 100%.
func (s *Stage) Finish() Snapshot {
	return s.tracker.update(s.current, s.total, s.startedAt, &s.lastLabel, s.prefix, true, false)
}

// Abort renders the final state of a stage that stopped early. The
// percentage stays where the stage left off.
func (s *Stage) Abort() Snapshot {
	return s.tracker.update(s.current, s.total, s.startedAt, &s.lastLabel, s.prefix, true, true)
}

func (s *Stage) Current() int         { return s.current }
func (s *Stage) Total() int           { return s.total }
func (s *Stage) StartedAt() time.Time { return s.startedAt }
func (s *Stage) Prefix() string       { return s.prefix }
