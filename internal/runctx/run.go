// Package runctx holds the state shared by every stage of one sqribe run:
// the abort signal, the run hash, the object type filter, connection
// strings and the script roots.
package runctx

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Settings struct {
	RunID       string
	StartedAt   time.Time
	ObjectTypes []string
	SourceDSN   string
	TargetDSN   string
	Hash        string
	OutputRoot  string
	ScriptRoot  string
}

type Run struct {
	settings Settings
	filter   map[string]struct{}

	aborted atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func New(s Settings) *Run {
	filter := make(map[string]struct{}, len(s.ObjectTypes))
	for _, t := range s.ObjectTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			filter[t] = struct{}{}
		}
	}
	return &Run{
		settings: s,
		filter:   filter,
		done:     make(chan struct{}),
	}
}

// RequestAbort signals every in-flight operation to stop. Safe to call any
// number of times from any goroutine.
func (r *Run) RequestAbort() {
	r.once.Do(func() {
		r.aborted.Store(true)
		close(r.done)
	})
}

func (r *Run) Aborted() bool {
	return r.aborted.Load()
}

// Done is closed once RequestAbort has been called.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Context derives a context that is cancelled when the run is aborted or
// parent is done.
func (r *Run) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Enabled reports whether the object type tag passes the run filter. An
// empty filter enables every type.
func (r *Run) Enabled(tag string) bool {
	if len(r.filter) == 0 {
		return true
	}
	_, ok := r.filter[strings.ToLower(tag)]
	return ok
}

func (r *Run) ID() string           { return r.settings.RunID }
func (r *Run) StartedAt() time.Time { return r.settings.StartedAt }
func (r *Run) Hash() string         { return r.settings.Hash }
func (r *Run) SourceDSN() string    { return r.settings.SourceDSN }
func (r *Run) TargetDSN() string    { return r.settings.TargetDSN }

func (r *Run) ObjectTypes() []string {
	return append([]string(nil), r.settings.ObjectTypes...)
}

// OutputPath is where a generated script for filename is written.
func (r *Run) OutputPath(filename string) string {
	return filepath.Join(r.settings.OutputRoot, filename)
}

// ScriptPath is where a previously generated script for filename is read
// back during restore.
func (r *Run) ScriptPath(filename string) string {
	return filepath.Join(r.settings.ScriptRoot, filename)
}
