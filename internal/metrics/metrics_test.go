package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hostbench/internal/ir"
)

func failedVerdict() *ir.HarnessVerdict {
	results := []ir.StepResult{ir.Pass(0, "a"), ir.Fail(1, "b", "boom"), ir.Aborted(2, "c", "panic: x")}
	v := ir.Aggregate("run-1", ir.RunManifest{RunID: "run-1", TotalSteps: 3, Complete: true}, results)
	v.HostVersion = "7.1"
	v.Duration = 3 * time.Second
	return v
}

func TestObserve(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	r.Observe(failedVerdict())

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("7.1", "step_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("PASS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("FAIL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("ABORTED")))
	assert.Equal(t, float64(ir.ExitStepFailure), testutil.ToFloat64(r.lastRun.WithLabelValues("7.1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.lastSuccess))
}

func TestObserve_PassSetsLastSuccess(t *testing.T) {
	r, err := NewRecorder()
	require.NoError(t, err)

	v := ir.Aggregate("run-2", ir.RunManifest{RunID: "run-2", TotalSteps: 1, Complete: true}, []ir.StepResult{ir.Pass(0, "a")})
	v.StartedAt = time.Unix(1000, 0)
	v.Duration = 5 * time.Second
	r.Observe(v)

	assert.Equal(t, 1005.0, testutil.ToFloat64(r.lastSuccess))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestPush(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		gotPath = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, err := NewRecorder()
	require.NoError(t, err)
	r.Observe(failedVerdict())

	err = r.Push(context.Background(), PushConfig{URL: srv.URL, Grouping: map[string]string{"suite": "smoke"}})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/hostbench/suite/smoke", gotPath)
	assert.Contains(t, gotBody, "hostbench_runs_total")
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewRecorder()
	require.NoError(t, err)
	err = r.Push(context.Background(), PushConfig{URL: srv.URL, Job: "ci"})
	assert.ErrorContains(t, err, "push metrics")
}
