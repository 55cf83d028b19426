package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_AllPass(t *testing.T) {
	results := []StepResult{Pass(0, "init"), Pass(1, "write-value"), Pass(2, "read-value")}
	v := Aggregate("run-1", RunManifest{RunID: "run-1", TotalSteps: 3, Complete: true}, results)

	assert.True(t, v.Passed)
	assert.Equal(t, FailureNone, v.FailureKind)
	assert.Equal(t, ExitPassed, v.ExitCode())
	assert.Equal(t, "3 steps: 3 passed, 0 failed, 0 aborted", v.Summary())
}

func TestAggregate_StepFailure(t *testing.T) {
	results := []StepResult{Pass(0, "a"), Fail(1, "b", "boom"), Pass(2, "c")}
	v := Aggregate("run-2", RunManifest{RunID: "run-2", TotalSteps: 3, Complete: true}, results)

	assert.False(t, v.Passed)
	assert.Equal(t, FailureStep, v.FailureKind)
	assert.Equal(t, ExitStepFailure, v.ExitCode())
}

func TestAggregate_AbortCountsAsStepFailure(t *testing.T) {
	results := []StepResult{Aborted(0, "a", "panic: boom")}
	v := Aggregate("run-3", RunManifest{TotalSteps: 1, Complete: true}, results)

	assert.False(t, v.Passed)
	assert.Equal(t, ExitStepFailure, v.ExitCode())
	pass, fail, aborted := v.Counts()
	assert.Equal(t, [3]int{0, 0, 1}, [3]int{pass, fail, aborted})
}

func TestAggregate_ZeroSteps(t *testing.T) {
	v := Aggregate("run-4", RunManifest{TotalSteps: 0, Complete: true}, nil)
	assert.True(t, v.Passed)
	assert.Equal(t, ExitPassed, v.ExitCode())
}

func TestUnfinished_NeverPasses(t *testing.T) {
	results := []StepResult{Pass(0, "a"), Pass(1, "b")}
	tests := []struct {
		kind FailureKind
		code int
	}{
		{FailureCrash, ExitCrash},
		{FailureTimeout, ExitTimeout},
		{FailureSetup, ExitSetup},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			v := Unfinished("run", tt.kind, "reason", results)
			assert.False(t, v.Passed)
			assert.Equal(t, tt.code, v.ExitCode())
			assert.Contains(t, v.Summary(), "reason")
		})
	}
}

func TestExitCode_PassedFlagIgnoredForProcessFailures(t *testing.T) {
	v := &HarnessVerdict{Passed: true, FailureKind: FailureCrash}
	assert.Equal(t, ExitCrash, v.ExitCode())
}
