package ir

import (
	"fmt"
	"strings"
)

// StepOutcome is the tagged outcome of one executed step.
type StepOutcome int

const (
	// OutcomePass means the step action returned without error.
	OutcomePass StepOutcome = iota + 1
	// OutcomeFail means the step action returned an error.
	OutcomeFail
	// OutcomeAborted means the step faulted (panicked) while executing.
	OutcomeAborted
)

// Outcome tags as they appear in sink records.
const (
	TagPass    = "PASS"
	TagFail    = "FAIL"
	TagAborted = "ABORTED"
)

// Tag returns the record tag for the outcome.
func (o StepOutcome) Tag() string {
	switch o {
	case OutcomePass:
		return TagPass
	case OutcomeFail:
		return TagFail
	case OutcomeAborted:
		return TagAborted
	default:
		return fmt.Sprintf("StepOutcome(%d)", int(o))
	}
}

func (o StepOutcome) String() string {
	return o.Tag()
}

// ParseOutcome converts a record tag back into a StepOutcome.
// Tags are matched exactly; "pass" is not a valid tag.
func ParseOutcome(tag string) (StepOutcome, error) {
	switch tag {
	case TagPass:
		return OutcomePass, nil
	case TagFail:
		return OutcomeFail, nil
	case TagAborted:
		return OutcomeAborted, nil
	default:
		return 0, fmt.Errorf("unknown outcome tag %q", tag)
	}
}

// MarshalText implements encoding.TextMarshaler so outcomes serialize as tags.
func (o StepOutcome) MarshalText() ([]byte, error) {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeAborted:
		return []byte(o.Tag()), nil
	default:
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *StepOutcome) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcome(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// StepResult is the record of one executed step.
// Written exactly once per executed step and never mutated afterwards.
type StepResult struct {
	Seq      int         `json:"seq"`
	StepName string      `json:"step_name"`
	Outcome  StepOutcome `json:"outcome"`
	Message  string      `json:"message,omitempty"`
}

// Pass builds a PASS result.
func Pass(seq int, name string) StepResult {
	return StepResult{Seq: seq, StepName: name, Outcome: OutcomePass}
}

// Fail builds a FAIL result.
func Fail(seq int, name, message string) StepResult {
	return StepResult{Seq: seq, StepName: name, Outcome: OutcomeFail, Message: message}
}

// Aborted builds an ABORTED result.
func Aborted(seq int, name, message string) StepResult {
	return StepResult{Seq: seq, StepName: name, Outcome: OutcomeAborted, Message: message}
}

// Validate checks the per-record invariants.
func (r StepResult) Validate() error {
	if r.Seq < 0 {
		return fmt.Errorf("negative seq %d", r.Seq)
	}
	if r.StepName == "" {
		return fmt.Errorf("seq %d: empty step name", r.Seq)
	}
	switch r.Outcome {
	case OutcomePass:
		if r.Message != "" {
			return fmt.Errorf("seq %d: PASS result carries a message", r.Seq)
		}
	case OutcomeFail, OutcomeAborted:
	default:
		return fmt.Errorf("seq %d: invalid outcome %d", r.Seq, int(r.Outcome))
	}
	return nil
}

// RunManifest describes a run as seen through its completion marker.
// Complete transitions false to true exactly once.
type RunManifest struct {
	RunID      string `json:"run_id"`
	TotalSteps int    `json:"total_steps"`
	Complete   bool   `json:"complete"`
}
