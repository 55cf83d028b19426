package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ErrInvalidRunID is returned for a run id that cannot name a directory
// safely.
var ErrInvalidRunID = errors.New("sink: invalid run id")

// ResultsFile is the file name of a run's record log inside its directory.
const ResultsFile = "results.log"

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateRunID rejects run ids that are empty, too long, or that could
// escape the sink directory.
func ValidateRunID(runID string) error {
	if !runIDPattern.MatchString(runID) {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// RunDir returns the storage directory of a run. Distinct run ids always
// map to distinct directories.
func RunDir(dir, runID string) string {
	return filepath.Join(dir, runID)
}

// PathFor returns the record log path of a run.
func PathFor(dir, runID string) string {
	return filepath.Join(RunDir(dir, runID), ResultsFile)
}

// Prepare creates the storage directory of a run. The launcher calls it at
// run start, before the host is spawned.
func Prepare(dir, runID string) (string, error) {
	if err := ValidateRunID(runID); err != nil {
		return "", err
	}
	runDir := RunDir(dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return runDir, nil
}
