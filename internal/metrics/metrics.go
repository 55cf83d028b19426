// Package metrics records hostbench run outcomes as Prometheus metrics.
//
// hostbench is a short-lived CLI, so metrics are collected into a private
// registry and pushed to a Pushgateway once a run finishes.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/roach88/hostbench/internal/ir"
)

// Namespace prefixes every metric name.
const Namespace = "hostbench"

// Recorder holds the run collectors.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	steps       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Harness runs by failure kind.",
		}, []string{"host_version", "failure_kind"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "step_results_total",
			Help:      "Recorded step results by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from host launch to verdict.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"failure_kind"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_exit_code",
			Help:      "Launcher exit code of the most recent run.",
		}, []string{"host_version"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent passing run.",
		}),
	}

	for _, c := range []prometheus.Collector{r.runs, r.steps, r.duration, r.lastRun, r.lastSuccess} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return r, nil
}

// Registry returns the registry the collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records one verdict.
func (r *Recorder) Observe(v *ir.HarnessVerdict) {
	r.runs.WithLabelValues(v.HostVersion, string(v.FailureKind)).Inc()
	for _, res := range v.Results {
		r.steps.WithLabelValues(res.Outcome.Tag()).Inc()
	}
	r.duration.WithLabelValues(string(v.FailureKind)).Observe(v.Duration.Seconds())
	r.lastRun.WithLabelValues(v.HostVersion).Set(float64(v.ExitCode()))
	if v.Passed && !v.StartedAt.IsZero() {
		r.lastSuccess.Set(float64(v.StartedAt.Add(v.Duration).Unix()))
	}
}

// PushConfig configures Push.
type PushConfig struct {
	// URL is the Pushgateway base URL, e.g. "http://localhost:9091".
	URL string
	// Job is the job label. Defaults to Namespace.
	Job string
	// Grouping adds grouping labels to the push.
	Grouping map[string]string
	Client   *http.Client
}

// Push sends the registry to a Pushgateway, replacing the previous push
// for the same job and grouping.
func (r *Recorder) Push(ctx context.Context, cfg PushConfig) error {
	job := cfg.Job
	if job == "" {
		job = Namespace
	}
	client := cfg.Client
	if client == nil {
		client = cleanhttp.DefaultClient()
	}

	p := push.New(cfg.URL, job).Gatherer(r.registry).Client(client)
	for k, v := range cfg.Grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
