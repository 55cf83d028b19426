package launcher

import (
	"context"

	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/metrics"
	"github.com/roach88/hostbench/internal/store"
)

// HistoryRecorder writes verdicts into the run history store.
type HistoryRecorder struct {
	Store *store.Store
}

func (h HistoryRecorder) Record(ctx context.Context, v *ir.HarnessVerdict) error {
	return h.Store.WriteRun(ctx, v)
}

// MetricsRecorder observes verdicts and pushes them to a Pushgateway when
// a URL is configured.
type MetricsRecorder struct {
	Metrics *metrics.Recorder
	Push    metrics.PushConfig
}

func (m MetricsRecorder) Record(ctx context.Context, v *ir.HarnessVerdict) error {
	m.Metrics.Observe(v)
	if m.Push.URL == "" {
		return nil
	}
	return m.Metrics.Push(ctx, m.Push)
}
