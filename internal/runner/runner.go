// Package runner drives queued steps from inside the host main loop.
//
// The Runner is a tick-driven state machine: the host calls Tick from its
// periodic timer and each Tick executes at most one step, records its
// outcome durably, and returns control to the host. One step per tick keeps
// the host responsive and makes every step individually attributable if the
// process dies mid-tick.
//
// Thread-safety: a Runner is confined to the host main-loop goroutine.
package runner

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/roach88/hostbench/internal/hostapi"
	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/step"
)

// Host exit codes requested by the runner.
const (
	ExitAllPassed   = 0
	ExitStepsFailed = 172 // distinguishes a completed run with failures from other exits
	ExitSinkBroken  = 173 // the sink rejected a write; no completion marker was written
)

// State is the runner's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder persists step results. *sink.Writer implements it.
type Recorder interface {
	Record(r ir.StepResult) error
	MarkComplete(m ir.RunManifest) error
}

// Options configures a Runner.
type Options struct {
	RunID string

	// StopOnFailure completes the run after the first FAIL or ABORTED
	// result. The completion total is then the number of executed steps.
	StopOnFailure bool

	// Terminate asks the host to exit once the run is finished.
	Terminate bool

	Logger *slog.Logger
}

// Runner executes the steps of a frozen queue, one per Tick.
type Runner struct {
	queue    *step.Queue
	host     hostapi.Host
	recorder Recorder
	opts     Options
	logger   *slog.Logger

	state  State
	next   int
	failed bool
}

// New creates a runner over q. The queue is frozen on the first Tick.
func New(q *step.Queue, host hostapi.Host, recorder Recorder, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		queue:    q,
		host:     host,
		recorder: recorder,
		opts:     opts,
		logger:   logger.With("run_id", opts.RunID),
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// Next returns the index of the next unexecuted step.
func (r *Runner) Next() int {
	return r.next
}

// Finished reports whether the runner has stopped for good.
func (r *Runner) Finished() bool {
	return r.state == StateFinished
}

// Tick executes at most one step. The step's result is durable before Tick
// returns. After the last step the completion marker is written and, if
// configured, the host is asked to terminate. Ticks after that are no-ops.
func (r *Runner) Tick() {
	if r.state == StateFinished {
		return
	}
	if !r.queue.Frozen() {
		r.queue.Freeze()
		r.logger.Info("step queue frozen", "steps", r.queue.Len(), "skipped", len(r.queue.Skipped()))
	}

	if r.next >= r.queue.Len() {
		r.finish()
		return
	}

	r.state = StateRunning
	res := r.execute(r.next)
	if err := r.recorder.Record(res); err != nil {
		r.abandon(fmt.Errorf("record step %d: %w", res.Seq, err))
		return
	}
	r.next++
	if res.Outcome != ir.OutcomePass {
		r.failed = true
	}
	r.state = StateIdle

	if r.next >= r.queue.Len() || (r.failed && r.opts.StopOnFailure) {
		r.finish()
	}
}

// Drain ticks until the runner finishes. Used for manually triggered runs
// where the whole suite executes inside one host callback.
func (r *Runner) Drain() {
	for r.state != StateFinished {
		r.Tick()
	}
}

// execute runs step i and converts its return or panic into a result.
func (r *Runner) execute(i int) (res ir.StepResult) {
	s := r.queue.At(i)
	logger := r.logger.With("step", s.Name, "index", i)
	ctx := &step.Context{
		Host:   r.host,
		Logger: logger,
		RunID:  r.opts.RunID,
		Index:  i,
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("step aborted", "panic", p, "stack", string(debug.Stack()))
			res = ir.Aborted(i, s.Name, fmt.Sprintf("panic: %v", p))
		}
	}()

	logger.Debug("step starting")
	if err := s.Action(ctx); err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "step returned an empty error"
		}
		logger.Warn("step failed", "error", msg, "duration", time.Since(start))
		return ir.Fail(i, s.Name, msg)
	}
	logger.Info("step passed", "duration", time.Since(start))
	return ir.Pass(i, s.Name)
}

func (r *Runner) finish() {
	manifest := ir.RunManifest{RunID: r.opts.RunID, TotalSteps: r.next, Complete: true}
	if err := r.recorder.MarkComplete(manifest); err != nil {
		r.abandon(fmt.Errorf("mark complete: %w", err))
		return
	}
	r.state = StateFinished

	code := ExitAllPassed
	if r.failed {
		code = ExitStepsFailed
	}
	r.logger.Info("run complete", "total_steps", r.next, "failed", r.failed, "early_stop", r.next < r.queue.Len())
	if r.opts.Terminate {
		r.host.Terminate(code)
	}
}

// abandon stops the run without a completion marker. The launcher sees
// the host exit without the marker and reports a crash, never a pass.
func (r *Runner) abandon(err error) {
	r.state = StateFinished
	r.logger.Error("run abandoned", "error", err, "next", r.next)
	if r.opts.Terminate {
		r.host.Terminate(ExitSinkBroken)
	}
}
