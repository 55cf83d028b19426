package sink

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/hostbench/internal/ir"
)

var (
	// ErrOutOfOrder is returned when a record would break the contiguous
	// sequence, or when the completion total disagrees with the records.
	ErrOutOfOrder = errors.New("sink: record out of order")

	// ErrRunExists is returned when the run's log already holds records.
	ErrRunExists = errors.New("sink: run already has records")

	// ErrClosed is returned by Record after the run was marked complete or
	// the writer was closed.
	ErrClosed = errors.New("sink: writer closed")
)

// syncer is the part of *os.File the Writer needs. Tests substitute it to
// observe or fail writes.
type syncer interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// Writer appends records for a single run. It is used from the host main
// loop only and is not safe for concurrent use.
type Writer struct {
	f        syncer
	runID    string
	path     string
	next     int
	complete bool
	closed   bool
}

// Create opens the record log of runID under dir for appending.
// The run directory is created if the launcher has not done so already.
// Returns ErrRunExists if the log is not empty.
func Create(dir, runID string) (*Writer, error) {
	if _, err := Prepare(dir, runID); err != nil {
		return nil, err
	}

	path := PathFor(dir, runID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results: %w", err)
	}
	if info.Size() > 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrRunExists, path)
	}
	return &Writer{f: f, runID: runID, path: path}, nil
}

// RunID returns the run this writer records.
func (w *Writer) RunID() string {
	return w.runID
}

// Path returns the record log path.
func (w *Writer) Path() string {
	return w.path
}

// Next returns the sequence index the next Record must carry.
func (w *Writer) Next() int {
	return w.next
}

// Record appends one step result and syncs it to stable storage before
// returning. r.Seq must equal Next().
func (w *Writer) Record(r ir.StepResult) error {
	if w.closed || w.complete {
		return ErrClosed
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if r.Seq != w.next {
		return fmt.Errorf("%w: got seq %d, want %d", ErrOutOfOrder, r.Seq, w.next)
	}
	if err := w.writeLine(EncodeResult(r)); err != nil {
		return fmt.Errorf("record seq %d: %w", r.Seq, err)
	}
	w.next++
	return nil
}

// MarkComplete writes the completion sentinel. m.TotalSteps must equal the
// number of records written. Calling it again after success is a no-op.
func (w *Writer) MarkComplete(m ir.RunManifest) error {
	if w.complete {
		return nil
	}
	if w.closed {
		return ErrClosed
	}
	if m.TotalSteps != w.next {
		return fmt.Errorf("%w: completion total %d, %d records written", ErrOutOfOrder, m.TotalSteps, w.next)
	}
	if err := w.writeLine(EncodeComplete(m.TotalSteps)); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	w.complete = true
	return nil
}

// Complete reports whether the sentinel has been written.
func (w *Writer) Complete() bool {
	return w.complete
}

// Close releases the file. Records already written stay durable.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}

func (w *Writer) writeLine(line string) error {
	if _, err := w.f.Write([]byte(line + "\n")); err != nil {
		return err
	}
	return w.f.Sync()
}
