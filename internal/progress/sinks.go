package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/mmrzaf/sqribe/internal/logging"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// LogSink writes progress to the structured logger: intermediate updates
// at debug level, finished stages at info.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent("progress")}
}

func (l *LogSink) Render(s Snapshot) {
	fields := map[string]any{
		"stage":         s.Prefix,
		"current":       s.Current,
		"total":         s.Total,
		"percent":       s.Percent,
		"group_percent": s.GroupPercent,
		"elapsed_ms":    s.Elapsed.Milliseconds(),
	}
	switch {
	case s.Aborted:
		l.logger.Warnw("progress.stage_aborted", fields)
		return
	case s.Done:
		l.logger.Infow("progress.stage_done", fields)
		return
	}
	l.logger.Debugw("progress.update", fields)
}

const (
	// consoleWidth caps the whole line when the output is not a terminal.
	consoleWidth   = 100
	consoleRefresh = 150 * time.Millisecond
)

// ConsoleSink draws one bar per stage. An aborted stage keeps its last
// position and shows "aborted" in place of the percentage.
type ConsoleSink struct {
	mu      sync.Mutex
	p       *mpb.Progress
	bars    map[string]*consoleBar
	order   []string
	refresh chan time.Time
	stop    chan struct{}
}

type consoleBar struct {
	bar     *mpb.Bar
	aborted atomic.Bool
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	c := &ConsoleSink{
		bars:    make(map[string]*consoleBar),
		refresh: make(chan time.Time),
		stop:    make(chan struct{}),
	}
	c.p = mpb.New(mpb.WithOutput(w), mpb.WithWidth(consoleWidth), mpb.WithManualRefresh(c.refresh))
	go c.tick()
	return c
}

func (c *ConsoleSink) tick() {
	t := time.NewTicker(consoleRefresh)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			select {
			case c.refresh <- now:
			case <-c.stop:
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *ConsoleSink) Render(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.bars[s.Prefix]
	if !ok {
		cb = &consoleBar{}
		cb.bar = c.p.AddBar(int64(s.Total),
			mpb.PrependDecorators(
				decor.Name(color.HiBlueString(s.Prefix), decor.WCSyncSpaceR),
				decor.Any(cb.status, decor.WC{W: 8}),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("%d/%d", decor.WCSyncWidth),
				decor.Name(" "),
				decor.Elapsed(decor.ET_STYLE_HHMMSS),
			),
		)
		c.bars[s.Prefix] = cb
		c.order = append(c.order, s.Prefix)
	}
	if cb.bar.Completed() {
		return
	}
	switch {
	case s.Aborted:
		cb.bar.SetTotal(int64(s.Total), false)
		cb.bar.SetCurrent(int64(s.Current))
		cb.aborted.Store(true)
		cb.bar.Abort(false)
	case s.Done:
		cb.bar.SetTotal(int64(s.Current), true)
	default:
		cb.bar.SetTotal(int64(s.Total), false)
		cb.bar.SetCurrent(int64(s.Current))
	}
}

func (cb *consoleBar) status(st decor.Statistics) string {
	switch {
	case cb.aborted.Load():
		return color.YellowString("aborted")
	case st.Completed:
		return color.HiMagentaString("done!")
	default:
		return fmt.Sprintf("%d %%", Percent(int(st.Current), int(st.Total)))
	}
}

// Close ends any bar still open, as aborted, and waits for the final
// render. Aborted bars are not re-rendered by mpb on shutdown, so one
// refresh is forced first.
func (c *ConsoleSink) Close() {
	c.mu.Lock()
	for _, name := range c.order {
		cb := c.bars[name]
		if !cb.bar.Completed() {
			cb.aborted.Store(true)
			cb.bar.Abort(false)
		}
	}
	c.mu.Unlock()

	c.refresh <- time.Now()
	c.p.Wait()
	close(c.stop)
}
