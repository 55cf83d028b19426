package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/hostbench/internal/acquire"
	"github.com/roach88/hostbench/internal/config"
	"github.com/roach88/hostbench/internal/hostversion"
	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/logging"
	"github.com/roach88/hostbench/internal/runner"
	"github.com/roach88/hostbench/internal/sink"
)

// HostResolver installs a host release for a version descriptor.
// Implemented by *acquire.Acquirer.
type HostResolver interface {
	Acquire(ctx context.Context, spec string) (acquire.Host, error)
}

// Recorder receives every verdict. Implemented by history and metrics sinks.
type Recorder interface {
	Record(ctx context.Context, v *ir.HarnessVerdict) error
}

// Options configures a Launcher.
type Options struct {
	Config config.Config
	Logger *slog.Logger

	// Resolver defaults to an acquire.Acquirer built from Config.Host.
	Resolver HostResolver
	// RunIDs defaults to UUIDv7Generator.
	RunIDs RunIDGenerator
	// Now defaults to time.Now.
	Now func() time.Time
	// Recorders are called with the verdict after every run.
	Recorders []Recorder
}

// Launcher runs harness runs.
type Launcher struct {
	cfg       config.Config
	logger    *slog.Logger
	resolver  HostResolver
	runIDs    RunIDGenerator
	now       func() time.Time
	recorders []Recorder
}

// New creates a Launcher.
func New(opts Options) *Launcher {
	l := &Launcher{
		cfg:       opts.Config,
		logger:    opts.Logger,
		resolver:  opts.Resolver,
		runIDs:    opts.RunIDs,
		now:       opts.Now,
		recorders: opts.Recorders,
	}
	if l.logger == nil {
		l.logger = logging.Discard()
	}
	if l.runIDs == nil {
		l.runIDs = UUIDv7Generator{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// setupError marks failures that happen before the host runs.
type setupError struct {
	stage string
	err   error
}

func (e *setupError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// Run performs one harness run and returns its verdict. It never returns
// nil. Recorder failures are logged and do not change the verdict.
func (l *Launcher) Run(ctx context.Context) *ir.HarnessVerdict {
	start := l.now()
	runID := l.runIDs.Generate()
	log := l.logger.With("run_id", runID)

	v, host := l.run(ctx, runID, log)
	v.RunID = runID
	v.StartedAt = start
	v.Duration = l.now().Sub(start)
	if v.HostVersion == "" {
		v.HostVersion = host.Version
	}

	log.Info("run finished",
		"passed", v.Passed,
		"failure_kind", v.FailureKind,
		"exit_code", v.ExitCode(),
		"summary", v.Summary(),
		"duration", v.Duration,
	)
	for _, rec := range l.recorders {
		if err := rec.Record(ctx, v); err != nil {
			log.Warn("record verdict", "error", err)
		}
	}
	return v
}

func (l *Launcher) run(ctx context.Context, runID string, log *slog.Logger) (*ir.HarnessVerdict, acquire.Host) {
	host, err := l.resolveHost(ctx)
	if err != nil {
		return l.setupFailed(runID, log, &setupError{"resolve host", err}), host
	}
	log = log.With("host_version", host.Version)

	sinkDir := l.cfg.Run.SinkDir
	runDir, err := sink.Prepare(sinkDir, runID)
	if err != nil {
		return l.setupFailed(runID, log, &setupError{"prepare sink", err}), host
	}

	home, err := prepareRunHome(runDir)
	if err != nil {
		return l.setupFailed(runID, log, &setupError{"prepare host home", err}), host
	}
	if err := InstallPlugin(home, l.cfg.Host.Plugin); err != nil {
		return l.setupFailed(runID, log, &setupError{"install plugin", err}), host
	}

	runCfg := runner.RunConfig{
		RunID:         runID,
		SinkDir:       sinkDir,
		Timeout:       l.cfg.Run.Timeout,
		StopOnFailure: l.cfg.Run.StopOnFailure,
	}
	env := hostEnv(os.Environ(), l.cfg.Host.Env, runCfg, home)
	workDir := host.Home
	if workDir == "" {
		workDir = home
	}

	log.Info("launching host", "executable", host.Executable, "args", l.cfg.Host.Args, "home", home, "timeout", l.cfg.Run.Timeout)
	proc, err := start(host.Executable, l.cfg.Host.Args, env, workDir, log)
	if err != nil {
		return l.setupFailed(runID, log, &setupError{"spawn host", err}), host
	}

	reader, err := sink.NewReader(sinkDir, runID)
	if err != nil {
		proc.kill()
		return l.setupFailed(runID, log, &setupError{"open sink", err}), host
	}

	v := l.watch(ctx, runID, proc, reader, log)
	if !proc.running() {
		code := proc.code
		v.HostExit = &code
	}
	// Children the host left behind go with it.
	proc.kill()
	return v, host
}

func (l *Launcher) setupFailed(runID string, log *slog.Logger, err error) *ir.HarnessVerdict {
	log.Error("setup failed", "error", err)
	return ir.Unfinished(runID, ir.FailureSetup, err.Error(), nil)
}

// resolveHost returns the configured executable, or acquires a release.
func (l *Launcher) resolveHost(ctx context.Context) (acquire.Host, error) {
	hc := l.cfg.Host
	if hc.Path != "" {
		if _, err := os.Stat(hc.Path); err != nil {
			return acquire.Host{}, fmt.Errorf("host executable: %w", err)
		}
		version := hc.Version
		if version == hostversion.Latest {
			version = ""
		}
		return acquire.Host{Version: version, Home: hc.Home, Executable: hc.Path, Cached: true}, nil
	}

	resolver := l.resolver
	if resolver == nil {
		a, err := acquire.New(acquire.Config{
			Manifest:  hc.Manifest,
			CacheDir:  hc.CacheDir,
			Logger:    l.logger,
			UserAgent: "hostbench/" + ir.HarnessVersion,
		})
		if err != nil {
			return acquire.Host{}, err
		}
		resolver = a
	}
	return resolver.Acquire(ctx, hc.Version)
}

// watch polls the sink until the run completes, the host exits or the
// timeout fires.
func (l *Launcher) watch(ctx context.Context, runID string, proc *process, reader *sink.Reader, log *slog.Logger) *ir.HarnessVerdict {
	ticker := time.NewTicker(l.cfg.Run.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(l.cfg.Run.Timeout)
	defer deadline.Stop()

	poll := func() error {
		results, err := reader.Poll()
		for _, r := range results {
			log.Debug("step recorded", "seq", r.Seq, "step", r.StepName, "outcome", r.Outcome)
		}
		return err
	}

	for {
		select {
		case <-ticker.C:
			if err := poll(); err != nil {
				proc.kill()
				return ir.Unfinished(runID, ir.FailureCrash, fmt.Sprintf("unreadable results: %v", err), reader.Results())
			}
			if reader.Complete() {
				l.awaitExit(proc, log)
				return l.completed(runID, reader)
			}

		case <-proc.exited:
			// Records flushed right before the exit are still valid.
			if err := poll(); err != nil {
				return ir.Unfinished(runID, ir.FailureCrash, fmt.Sprintf("unreadable results: %v", err), reader.Results())
			}
			if reader.Complete() {
				return l.completed(runID, reader)
			}
			return ir.Unfinished(runID, ir.FailureCrash,
				fmt.Sprintf("host exited with code %d before the completion marker", proc.code),
				reader.Results())

		case <-deadline.C:
			log.Warn("run timed out, killing host", "timeout", l.cfg.Run.Timeout)
			proc.kill()
			return l.interrupted(runID, reader, ir.FailureTimeout,
				fmt.Sprintf("no completion marker within %s", l.cfg.Run.Timeout))

		case <-ctx.Done():
			log.Warn("run interrupted, killing host", "error", ctx.Err())
			proc.kill()
			return l.interrupted(runID, reader, ir.FailureTimeout,
				fmt.Sprintf("interrupted: %v", ctx.Err()))
		}
	}
}

// interrupted builds the verdict after the launcher killed the host. A
// marker written before the kill still counts as completion.
func (l *Launcher) interrupted(runID string, reader *sink.Reader, kind ir.FailureKind, reason string) *ir.HarnessVerdict {
	if _, err := reader.Poll(); err == nil && reader.Complete() {
		return l.completed(runID, reader)
	}
	return ir.Unfinished(runID, kind, reason, reader.Results())
}

func (l *Launcher) completed(runID string, reader *sink.Reader) *ir.HarnessVerdict {
	m := reader.Manifest()
	results := reader.Results()
	if len(results) != m.TotalSteps {
		return ir.Unfinished(runID, ir.FailureCrash,
			fmt.Sprintf("completion marker reports %d steps but %d were recorded", m.TotalSteps, len(results)),
			results)
	}
	return ir.Aggregate(runID, m, results)
}

// awaitExit gives a completed host the grace period to exit, then kills it.
func (l *Launcher) awaitExit(proc *process, log *slog.Logger) {
	grace := time.NewTimer(l.cfg.Run.Grace)
	defer grace.Stop()
	select {
	case <-proc.exited:
	case <-grace.C:
		log.Warn("host still running after completion, killing it", "grace", l.cfg.Run.Grace)
		proc.kill()
	}
}
