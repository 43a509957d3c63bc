// Package replay executes scripts against a target connection: drop
// templates batch by batch, and generated scripts block by block.
package replay

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/logging"
	"github.com/mmrzaf/sqribe/internal/script"
)

type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type State int

const (
	StateIdle State = iota
	StateLoading
	StateExecuting
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Report describes one replay. Failures holds one entry per failed batch.
type Report struct {
	State    State
	Batches  int
	Executed int
	Failures []*domain.ExecutionError
	// Hashes counts blocks per header hash; drop templates carry none.
	Hashes    map[string]int
	Unstamped int
	Duration  time.Duration
}

// Observer is told how many batches were loaded and when each one has run.
type Observer interface {
	Loaded(total int)
	Executed(index int)
}

type Engine struct {
	exec     Executor
	logger   *logging.Logger
	observer Observer

	mu    sync.Mutex
	state State
}

func New(exec Executor, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{exec: exec, logger: logger.WithComponent("replay")}
}

// WithObserver sets a progress observer and returns the engine.
func (e *Engine) WithObserver(o Observer) *Engine {
	e.observer = o
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

type batch struct {
	text string
	line int
}

// Drop runs the GO-separated template name from fsys. It stops at the
// first failed batch.
func (e *Engine) Drop(ctx context.Context, fsys fs.FS, name string) (*Report, error) {
	started := time.Now()
	e.setState(StateLoading)

	f, err := fsys.Open(name)
	if err != nil {
		e.setState(StateFailed)
		return &Report{State: StateFailed}, &domain.IOError{Path: name, Err: err}
	}
	defer f.Close()

	parts, err := script.SplitBatches(f)
	if err != nil {
		e.setState(StateFailed)
		return &Report{State: StateFailed}, &domain.IOError{Path: name, Err: err}
	}

	batches := make([]batch, 0, len(parts))
	for _, p := range parts {
		batches = append(batches, batch{text: p.Text, line: p.Line})
	}

	rep := &Report{Batches: len(batches), Hashes: map[string]int{}}
	e.execute(ctx, name, batches, rep, true)
	rep.Duration = time.Since(started)
	return rep, e.outcome(rep)
}

// Restore runs every block of the generated script at path. Blocks with a
// foreign or missing hash still run; a failed block does not stop the
// blocks after it.
func (e *Engine) Restore(ctx context.Context, path, expectedHash string) (*Report, error) {
	started := time.Now()
	e.setState(StateLoading)

	f, err := os.Open(path)
	if err != nil {
		e.setState(StateFailed)
		return &Report{State: StateFailed}, &domain.IOError{Path: path, Err: err}
	}
	defer f.Close()

	return e.restore(ctx, path, f, expectedHash, started)
}

func (e *Engine) restore(ctx context.Context, path string, r io.Reader, expectedHash string, started time.Time) (*Report, error) {
	blocks, err := script.Split(r, expectedHash)
	if err != nil {
		e.setState(StateFailed)
		return &Report{State: StateFailed}, &domain.IOError{Path: path, Err: err}
	}

	rep := &Report{Batches: len(blocks), Hashes: map[string]int{}}
	batches := make([]batch, 0, len(blocks))
	for _, b := range blocks {
		rep.Hashes[b.Hash]++
		if !b.Stamped {
			rep.Unstamped++
		}
		batches = append(batches, batch{text: b.Body, line: b.Line})
	}
	if rep.Unstamped > 0 {
		e.logger.Warnw("replay.unstamped_blocks", map[string]any{
			"path":      path,
			"unstamped": rep.Unstamped,
			"blocks":    len(blocks),
		})
	}

	e.execute(ctx, path, batches, rep, false)
	rep.Duration = time.Since(started)
	return rep, e.outcome(rep)
}

func (e *Engine) execute(ctx context.Context, name string, batches []batch, rep *Report, stopOnFailure bool) {
	e.setState(StateExecuting)
	if e.observer != nil {
		e.observer.Loaded(len(batches))
	}

	detached := context.WithoutCancel(ctx)
	for i, b := range batches {
		if ctx.Err() != nil {
			rep.State = StateAborted
			e.setState(StateAborted)
			e.logger.Infow("replay.aborted", map[string]any{
				"script":   name,
				"executed": rep.Executed,
				"batches":  rep.Batches,
			})
			return
		}

		_, err := e.exec.ExecContext(detached, b.text)
		rep.Executed++
		if e.observer != nil {
			e.observer.Executed(i + 1)
		}
		if err != nil {
			fail := &domain.ExecutionError{Batch: i + 1, Line: b.line, Err: err}
			rep.Failures = append(rep.Failures, fail)
			e.logger.Errorw("replay.batch_failed", map[string]any{
				"script": name,
				"batch":  i + 1,
				"line":   b.line,
				"error":  err,
			})
			if stopOnFailure {
				break
			}
		}
	}

	if len(rep.Failures) > 0 {
		rep.State = StateFailed
	} else {
		rep.State = StateCompleted
	}
	e.setState(rep.State)
}

func (e *Engine) outcome(rep *Report) error {
	switch rep.State {
	case StateAborted:
		return domain.ErrCancellationRequested
	case StateFailed:
		return rep.Failures[0]
	default:
		return nil
	}
}
