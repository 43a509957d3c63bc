package script

import (
	"os"
	"path/filepath"

	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/pkg/errors"
)

// Run is the part of the run context the assembler needs.
type Run interface {
	Aborted() bool
	Hash() string
}

// Producer appends blocks to w and returns how many objects it emitted.
type Producer func(w *Writer) (int, error)

type BuildResult struct {
	FilePath    string
	ObjectCount int
	// Partial is set when the producer was cancelled and only the objects
	// emitted so far were written.
	Partial bool
}

type Assembler struct {
	run Run
}

func NewAssembler(run Run) *Assembler {
	return &Assembler{run: run}
}

// Assemble runs produce against an empty buffer and writes the result to
// outputPath atomically. When the run is already aborted nothing is
// produced or written and an empty result is returned. When produce
// returns domain.ErrCancellationRequested the blocks emitted so far are
// still written, and the cancellation is returned alongside the result.
func (a *Assembler) Assemble(objectName, outputPath string, produce Producer) (*BuildResult, error) {
	if a.run.Aborted() {
		return &BuildResult{}, nil
	}

	w := NewWriter(a.run.Hash())
	count, err := produce(w)
	cancelled := domain.IsCancellation(err)
	if err != nil && !cancelled {
		return nil, errors.WithMessagef(err, "build %s script", objectName)
	}

	if werr := WriteFileAtomic(outputPath, w.Bytes()); werr != nil {
		return nil, werr
	}

	res := &BuildResult{FilePath: outputPath, ObjectCount: count, Partial: cancelled}
	if cancelled {
		return res, err
	}
	return res, nil
}

// WriteFileAtomic writes data next to path and renames it into place, so a
// reader never sees a half-written script.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.IOError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &domain.IOError{Path: path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &domain.IOError{Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &domain.IOError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return &domain.IOError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &domain.IOError{Path: path, Err: err}
	}
	return nil
}
