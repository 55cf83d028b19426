package ir

import (
	"fmt"
	"time"
)

// FailureKind classifies why a run did not pass.
type FailureKind string

const (
	FailureNone    FailureKind = "none"
	FailureStep    FailureKind = "step_failure"
	FailureCrash   FailureKind = "crash"
	FailureTimeout FailureKind = "timeout"
	FailureSetup   FailureKind = "setup_failure"
)

// Launcher exit codes.
const (
	ExitPassed      = 0 // All steps passed
	ExitStepFailure = 1 // Run completed, one or more steps failed or aborted
	ExitCrash       = 2 // Host exited before the completion marker
	ExitTimeout     = 3 // No completion marker within the timeout
	ExitSetup       = 4 // Host resolution, integrity or launch failure
)

// HarnessVerdict is the launcher's final classification of a run.
type HarnessVerdict struct {
	RunID       string        `json:"run_id"`
	Passed      bool          `json:"passed"`
	Results     []StepResult  `json:"results"`
	FailureKind FailureKind   `json:"failure_kind"`
	Reason      string        `json:"reason,omitempty"`
	TotalSteps  int           `json:"total_steps"`
	HostVersion string        `json:"host_version,omitempty"`
	HostExit    *int          `json:"host_exit,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// ExitCode maps the verdict onto the launcher's process exit code.
func (v *HarnessVerdict) ExitCode() int {
	switch v.FailureKind {
	case FailureNone:
		if v.Passed {
			return ExitPassed
		}
		return ExitStepFailure
	case FailureStep:
		return ExitStepFailure
	case FailureCrash:
		return ExitCrash
	case FailureTimeout:
		return ExitTimeout
	default:
		return ExitSetup
	}
}

// Counts returns the number of PASS, FAIL and ABORTED results.
func (v *HarnessVerdict) Counts() (pass, fail, aborted int) {
	for _, r := range v.Results {
		switch r.Outcome {
		case OutcomePass:
			pass++
		case OutcomeFail:
			fail++
		case OutcomeAborted:
			aborted++
		}
	}
	return pass, fail, aborted
}

// Summary returns a one-line human readable description.
func (v *HarnessVerdict) Summary() string {
	pass, fail, aborted := v.Counts()
	switch v.FailureKind {
	case FailureNone, FailureStep:
		return fmt.Sprintf("%d steps: %d passed, %d failed, %d aborted", v.TotalSteps, pass, fail, aborted)
	case FailureCrash:
		return fmt.Sprintf("host crashed after %d recorded steps: %s", len(v.Results), v.Reason)
	case FailureTimeout:
		return fmt.Sprintf("timed out after %d recorded steps: %s", len(v.Results), v.Reason)
	default:
		return fmt.Sprintf("setup failed: %s", v.Reason)
	}
}

// Aggregate builds the verdict for a run whose completion marker was observed.
// Passed is true iff every recorded outcome is PASS.
func Aggregate(runID string, manifest RunManifest, results []StepResult) *HarnessVerdict {
	v := &HarnessVerdict{
		RunID:       runID,
		Passed:      true,
		Results:     results,
		FailureKind: FailureNone,
		TotalSteps:  manifest.TotalSteps,
	}
	for _, r := range results {
		if r.Outcome != OutcomePass {
			v.Passed = false
			v.FailureKind = FailureStep
			break
		}
	}
	return v
}

// Unfinished builds a verdict for a run that never produced a completion
// marker. Such a run is never reported as passed.
func Unfinished(runID string, kind FailureKind, reason string, results []StepResult) *HarnessVerdict {
	return &HarnessVerdict{
		RunID:       runID,
		Passed:      false,
		Results:     results,
		FailureKind: kind,
		Reason:      reason,
	}
}
