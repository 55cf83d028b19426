package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/hostbench/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestVerdict creates a completed verdict with the given results.
func createTestVerdict(runID string, results ...ir.StepResult) *ir.HarnessVerdict {
	v := ir.Aggregate(runID, ir.RunManifest{RunID: runID, TotalSteps: len(results), Complete: true}, results)
	v.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v.Duration = 1500 * time.Millisecond
	v.HostVersion = "7.0.0"
	code := 0
	if !v.Passed {
		code = 172
	}
	v.HostExit = &code
	return v
}
