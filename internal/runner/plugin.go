package runner

import (
	"fmt"
	"log/slog"

	"github.com/roach88/hostbench/internal/hostapi"
	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/sink"
	"github.com/roach88/hostbench/internal/step"
)

// Plugin is the in-host entry point of the harness. The host's plugin load
// hook calls Setup, pushes steps, and returns; the host main loop then
// drives the run through the registered timer.
type Plugin struct {
	host   hostapi.Host
	queue  *step.Queue
	cfg    *RunConfig
	logger *slog.Logger

	action     hostapi.ActionID
	writer     *sink.Writer
	runner     *Runner
	unregister func()
}

// PluginOption configures Setup.
type PluginOption func(*Plugin)

// WithQueue uses q instead of the process-wide queue.
func WithQueue(q *step.Queue) PluginOption {
	return func(p *Plugin) {
		p.queue = q
	}
}

// WithRunConfig overrides the configuration read from the environment.
func WithRunConfig(cfg RunConfig) PluginOption {
	return func(p *Plugin) {
		p.cfg = &cfg
	}
}

// WithLogger sets the logger handed to the runner and to every step.
func WithLogger(l *slog.Logger) PluginOption {
	return func(p *Plugin) {
		p.logger = l
	}
}

// Setup prepares the harness inside the host.
//
// It registers actionName as a host action that runs every step at once
// (manual mode, results go to the host console). When the run config names
// a run, it also opens the run's sink and registers the timer that ticks
// the runner, which terminates the host when the run is complete.
func Setup(host hostapi.Host, actionName string, opts ...PluginOption) (*Plugin, error) {
	p := &Plugin{host: host, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg == nil {
		cfg, err := ConfigFromEnv(nil)
		if err != nil {
			return nil, fmt.Errorf("read run config: %w", err)
		}
		p.cfg = &cfg
	}
	if p.queue == nil {
		p.queue = step.Install(step.NewQueue(host.Version()))
	}

	id, err := host.RegisterAction(actionName, p.runManual)
	if err != nil {
		return nil, fmt.Errorf("register action %q: %w", actionName, err)
	}
	p.action = id

	if !p.cfg.Integration() {
		p.logger.Debug("harness loaded for manual runs", "action", actionName)
		return p, nil
	}

	w, err := sink.Create(p.cfg.SinkDir, p.cfg.RunID)
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	p.writer = w
	p.runner = New(p.queue, host, w, Options{
		RunID:         p.cfg.RunID,
		StopOnFailure: p.cfg.StopOnFailure,
		Terminate:     true,
		Logger:        p.logger,
	})
	p.unregister = host.RegisterTimer(p.tick)
	p.logger.Info("harness armed",
		"run_id", p.cfg.RunID,
		"sink", w.Path(),
		"host_version", host.Version(),
		"timeout", p.cfg.Timeout,
	)
	return p, nil
}

// Push appends a step during setup.
func (p *Plugin) Push(s step.TestStep) error {
	return p.queue.Push(s)
}

// Queue returns the plugin's step queue.
func (p *Plugin) Queue() *step.Queue {
	return p.queue
}

// Config returns the run configuration in effect.
func (p *Plugin) Config() RunConfig {
	return *p.cfg
}

// Action returns the id of the manual-run action.
func (p *Plugin) Action() hostapi.ActionID {
	return p.action
}

// Runner returns the integration runner, or nil in manual mode.
func (p *Plugin) Runner() *Runner {
	return p.runner
}

func (p *Plugin) tick() {
	p.runner.Tick()
	if !p.runner.Finished() {
		return
	}
	if p.unregister != nil {
		p.unregister()
		p.unregister = nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("close sink", "error", err)
	}
}

// runManual executes every queued step synchronously and prints each
// record to the host console. The queue is frozen afterwards.
func (p *Plugin) runManual() error {
	rec := &consoleRecorder{host: p.host}
	r := New(p.queue, p.host, rec, Options{RunID: "manual", Logger: p.logger})
	r.Drain()
	if rec.failed > 0 {
		return fmt.Errorf("%d of %d steps did not pass", rec.failed, rec.total)
	}
	return nil
}

type consoleRecorder struct {
	host   hostapi.Host
	total  int
	failed int
}

func (c *consoleRecorder) Record(r ir.StepResult) error {
	c.total++
	if r.Outcome != ir.OutcomePass {
		c.failed++
	}
	c.host.Console(sink.EncodeResult(r) + "\n")
	return nil
}

func (c *consoleRecorder) MarkComplete(m ir.RunManifest) error {
	c.host.Console(sink.EncodeComplete(m.TotalSteps) + "\n")
	return nil
}
