package sink

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/hostbench/internal/ir"
)

// Reader follows the record log of one run from the launcher side.
// Each Poll picks up where the previous one stopped.
type Reader struct {
	runID    string
	path     string
	offset   int64
	pending  []byte
	results  []ir.StepResult
	manifest ir.RunManifest
}

// NewReader creates a reader for runID under dir. The log need not exist
// yet; until it does, Poll returns nothing.
func NewReader(dir, runID string) (*Reader, error) {
	if err := ValidateRunID(runID); err != nil {
		return nil, err
	}
	return &Reader{
		runID:    runID,
		path:     PathFor(dir, runID),
		manifest: ir.RunManifest{RunID: runID},
	}, nil
}

// Poll reads records appended since the last call and returns the new step
// results. A trailing line without its newline is left for a later poll.
func (r *Reader) Poll() ([]ir.StepResult, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek results: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	r.offset += int64(len(data))
	r.pending = append(r.pending, data...)

	var fresh []ir.StepResult
	for {
		idx := bytes.IndexByte(r.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(r.pending[:idx])
		r.pending = r.pending[idx+1:]

		res, err := r.apply(line)
		if err != nil {
			return fresh, err
		}
		if res != nil {
			fresh = append(fresh, *res)
		}
	}
	return fresh, nil
}

func (r *Reader) apply(line string) (*ir.StepResult, error) {
	if r.manifest.Complete {
		return nil, fmt.Errorf("%w: record after completion: %q", ErrCorrupt, line)
	}
	decoded, err := DecodeLine(line)
	if err != nil {
		return nil, err
	}
	if decoded.Complete {
		if decoded.Total != len(r.results) {
			return nil, fmt.Errorf("%w: completion total %d, %d records read", ErrCorrupt, decoded.Total, len(r.results))
		}
		r.manifest.TotalSteps = decoded.Total
		r.manifest.Complete = true
		return nil, nil
	}
	if decoded.Result.Seq != len(r.results) {
		return nil, fmt.Errorf("%w: got seq %d, want %d", ErrCorrupt, decoded.Result.Seq, len(r.results))
	}
	r.results = append(r.results, decoded.Result)
	return &decoded.Result, nil
}

// Results returns every result read so far, in sequence order.
func (r *Reader) Results() []ir.StepResult {
	out := make([]ir.StepResult, len(r.results))
	copy(out, r.results)
	return out
}

// Manifest returns the run manifest as observed so far.
func (r *Reader) Manifest() ir.RunManifest {
	return r.manifest
}

// Complete reports whether the completion sentinel has been read.
func (r *Reader) Complete() bool {
	return r.manifest.Complete
}

// Path returns the record log path being followed.
func (r *Reader) Path() string {
	return r.path
}

// Load reads a run's whole record log in one pass.
func Load(dir, runID string) (ir.RunManifest, []ir.StepResult, error) {
	r, err := NewReader(dir, runID)
	if err != nil {
		return ir.RunManifest{}, nil, err
	}
	if _, err := os.Stat(r.path); err != nil {
		return ir.RunManifest{}, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if _, err := r.Poll(); err != nil {
		return r.Manifest(), r.Results(), err
	}
	return r.Manifest(), r.Results(), nil
}
