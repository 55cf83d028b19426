package suites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/logging"
	"github.com/roach88/hostbench/internal/runner"
	"github.com/roach88/hostbench/internal/simhost"
	"github.com/roach88/hostbench/internal/step"
	"github.com/roach88/hostbench/internal/suites"
)

// memRecorder collects results in memory.
type memRecorder struct {
	results  []ir.StepResult
	manifest *ir.RunManifest
}

func (m *memRecorder) Record(r ir.StepResult) error {
	m.results = append(m.results, r)
	return nil
}

func (m *memRecorder) MarkComplete(mf ir.RunManifest) error {
	m.manifest = &mf
	return nil
}

// drain runs the named suite to completion on a fresh simulated host.
func drain(t *testing.T, name, hostVersion string) (*memRecorder, *step.Queue) {
	t.Helper()
	s, err := suites.Lookup(name)
	require.NoError(t, err)

	host := simhost.New(simhost.Config{Version: hostVersion})
	q := step.NewQueue(hostVersion)
	require.NoError(t, s.Push(q))

	rec := &memRecorder{}
	r := runner.New(q, host, rec, runner.Options{RunID: "suite-test", Logger: logging.Discard()})
	r.Drain()
	require.NotNil(t, rec.manifest)
	return rec, q
}

func outcomes(results []ir.StepResult) []ir.StepOutcome {
	out := make([]ir.StepOutcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome
	}
	return out
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"abort", "capabilities", "crash", "early-exit", "empty", "failing", "hang", "smoke"}, suites.Names())
}

func TestLookup_Unknown(t *testing.T) {
	_, err := suites.Lookup("nope")
	assert.ErrorIs(t, err, suites.ErrUnknownSuite)
}

func TestSmoke(t *testing.T) {
	rec, _ := drain(t, "smoke", "7.0.0")
	assert.Equal(t, []ir.StepOutcome{ir.OutcomePass, ir.OutcomePass, ir.OutcomePass}, outcomes(rec.results))
}

func TestFailing(t *testing.T) {
	rec, _ := drain(t, "failing", "7.0.0")
	assert.Equal(t, []ir.StepResult{ir.Pass(0, "a"), ir.Fail(1, "b", "boom"), ir.Pass(2, "c")}, rec.results)
}

func TestAbort(t *testing.T) {
	rec, _ := drain(t, "abort", "7.0.0")
	require.Len(t, rec.results, 3)
	assert.Equal(t, ir.OutcomeAborted, rec.results[1].Outcome)
	assert.Contains(t, rec.results[1].Message, "nil map")
	assert.Equal(t, ir.OutcomePass, rec.results[2].Outcome)
}

func TestEmpty(t *testing.T) {
	rec, _ := drain(t, "empty", "7.0.0")
	assert.Empty(t, rec.results)
	assert.Equal(t, 0, rec.manifest.TotalSteps)
}

func TestCapabilities(t *testing.T) {
	rec, q := drain(t, "capabilities", "7.0.0")
	for _, r := range rec.results {
		assert.Equal(t, ir.OutcomePass, r.Outcome, "%s: %s", r.StepName, r.Message)
	}
	assert.Len(t, rec.results, 6)
	assert.Equal(t, []string{"future api"}, q.Skipped())
}

func TestCapabilities_OldHostSkipsPersist(t *testing.T) {
	rec, q := drain(t, "capabilities", "6.5")
	assert.Len(t, rec.results, 5)
	assert.Equal(t, []string{"ext state persist", "future api"}, q.Skipped())
}
