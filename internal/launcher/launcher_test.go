package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hostbench/internal/acquire"
	"github.com/roach88/hostbench/internal/config"
	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/sink"
	"github.com/roach88/hostbench/internal/testutil"
)

// helperConfig runs the test binary as a simulated host loading suite.
func helperConfig(t *testing.T, suite string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Host.Path = os.Args[0]
	cfg.Host.Version = "7.0.0"
	cfg.Host.Args = []string{"--suite", suite, "--tick", "5ms", "--log-level", "warn"}
	cfg.Host.Env = []string{envHelperHost + "=1"}
	cfg.Run.SinkDir = t.TempDir()
	cfg.Run.Timeout = 20 * time.Second
	cfg.Run.PollInterval = 10 * time.Millisecond
	cfg.Run.Grace = 2 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func runOnce(t *testing.T, cfg config.Config, opts ...func(*Options)) *ir.HarnessVerdict {
	t.Helper()
	o := Options{
		Config: cfg,
		RunIDs: testutil.NewFixedRunIDGenerator("run-under-test"),
	}
	for _, fn := range opts {
		fn(&o)
	}
	v := New(o).Run(context.Background())
	require.NotNil(t, v)
	return v
}

func TestRun_AllPass(t *testing.T) {
	v := runOnce(t, helperConfig(t, "smoke"))

	assert.True(t, v.Passed, v.Summary())
	assert.Equal(t, ir.FailureNone, v.FailureKind)
	assert.Equal(t, ir.ExitPassed, v.ExitCode())
	assert.Equal(t, "run-under-test", v.RunID)
	assert.Equal(t, "7.0.0", v.HostVersion)
	assert.Equal(t, 3, v.TotalSteps)
	require.Len(t, v.Results, 3)
	require.NotNil(t, v.HostExit)
	assert.Equal(t, 0, *v.HostExit)
}

func TestRun_StepFailure(t *testing.T) {
	v := runOnce(t, helperConfig(t, "failing"))

	assert.False(t, v.Passed)
	assert.Equal(t, ir.FailureStep, v.FailureKind)
	assert.Equal(t, ir.ExitStepFailure, v.ExitCode())
	assert.Equal(t, []ir.StepResult{
		ir.Pass(0, "a"),
		ir.Fail(1, "b", "boom"),
		ir.Pass(2, "c"),
	}, v.Results)
	require.NotNil(t, v.HostExit)
	assert.Equal(t, 172, *v.HostExit)
}

func TestRun_PanicIsAborted(t *testing.T) {
	v := runOnce(t, helperConfig(t, "abort"))

	assert.Equal(t, ir.FailureStep, v.FailureKind)
	require.Len(t, v.Results, 3)
	assert.Equal(t, ir.OutcomeAborted, v.Results[1].Outcome)
	assert.Equal(t, ir.OutcomePass, v.Results[2].Outcome)
}

func TestRun_ZeroSteps(t *testing.T) {
	v := runOnce(t, helperConfig(t, "empty"))

	assert.True(t, v.Passed)
	assert.Equal(t, 0, v.TotalSteps)
	assert.Empty(t, v.Results)
}

func TestRun_CrashKeepsFlushedResults(t *testing.T) {
	v := runOnce(t, helperConfig(t, "crash"))

	assert.False(t, v.Passed)
	assert.Equal(t, ir.FailureCrash, v.FailureKind)
	assert.Equal(t, ir.ExitCrash, v.ExitCode())
	assert.Equal(t, []ir.StepResult{ir.Pass(0, "before")}, v.Results)
	require.NotNil(t, v.HostExit)
	assert.Equal(t, 2, *v.HostExit, "unrecovered goroutine panic")
}

func TestRun_CleanExitWithoutMarkerIsCrash(t *testing.T) {
	v := runOnce(t, helperConfig(t, "early-exit"))

	assert.Equal(t, ir.FailureCrash, v.FailureKind)
	assert.Len(t, v.Results, 2)
	require.NotNil(t, v.HostExit)
	assert.Equal(t, 0, *v.HostExit)
	assert.Contains(t, v.Reason, "before the completion marker")
}

func TestRun_TimeoutKillsHost(t *testing.T) {
	cfg := helperConfig(t, "hang")
	cfg.Run.Timeout = 1500 * time.Millisecond

	start := time.Now()
	v := runOnce(t, cfg)

	assert.Equal(t, ir.FailureTimeout, v.FailureKind)
	assert.Equal(t, ir.ExitTimeout, v.ExitCode())
	assert.Equal(t, []ir.StepResult{ir.Pass(0, "before")}, v.Results)
	assert.Less(t, time.Since(start), 15*time.Second)
	require.NotNil(t, v.HostExit)
	assert.Equal(t, -1, *v.HostExit)
}

func TestRun_StopOnFailure(t *testing.T) {
	cfg := helperConfig(t, "failing")
	cfg.Run.StopOnFailure = true

	v := runOnce(t, cfg)
	assert.Equal(t, ir.FailureStep, v.FailureKind)
	assert.Equal(t, 2, v.TotalSteps)
	assert.Len(t, v.Results, 2)
}

func TestRun_InstalledPluginSelectsSuite(t *testing.T) {
	cfg := helperConfig(t, "")
	cfg.Host.Args = []string{"--tick", "5ms", "--log-level", "warn"}
	cfg.Host.Home = t.TempDir()
	cfg.Host.Plugin = config.PluginConfig{Suite: "capabilities"}

	v := runOnce(t, cfg)
	assert.True(t, v.Passed, v.Summary())
	assert.Equal(t, 6, v.TotalSteps)

	home := filepath.Join(sink.RunDir(cfg.Run.SinkDir, v.RunID), RunHomeDir)
	assert.FileExists(t, filepath.Join(home, "UserPlugins", PluginFile))
	assert.FileExists(t, filepath.Join(home, "extstate.db"))
	assert.NoDirExists(t, filepath.Join(cfg.Host.Home, "UserPlugins"), "release home untouched")
}

func TestRun_ConcurrentRunsOfOneHostAreIsolated(t *testing.T) {
	shared := t.TempDir()
	suites := map[string]string{"run-smoke": "smoke", "run-failing": "failing"}

	verdicts := make(chan *ir.HarnessVerdict, len(suites))
	for id, suite := range suites {
		cfg := helperConfig(t, "")
		cfg.Host.Args = []string{"--tick", "5ms", "--log-level", "warn"}
		cfg.Host.Home = shared
		cfg.Host.Plugin = config.PluginConfig{Suite: suite}
		l := New(Options{Config: cfg, RunIDs: testutil.NewFixedRunIDGenerator(id)})
		go func() { verdicts <- l.Run(context.Background()) }()
	}

	for range suites {
		v := <-verdicts
		switch suites[v.RunID] {
		case "smoke":
			assert.True(t, v.Passed, v.Summary())
			assert.Equal(t, 3, v.TotalSteps)
		case "failing":
			assert.Equal(t, ir.FailureStep, v.FailureKind, v.Summary())
		default:
			t.Errorf("unexpected run %q", v.RunID)
		}
	}
}

func TestRun_OrphanHoldingOutputDoesNotHideExit(t *testing.T) {
	cfg := helperConfig(t, "smoke")
	cfg.Host.Env = []string{envHelperMode + "=orphan-exit"}

	began := time.Now()
	v := runOnce(t, cfg)
	assert.Less(t, time.Since(began), 10*time.Second)
	assert.Equal(t, ir.FailureCrash, v.FailureKind, v.Summary())
	require.NotNil(t, v.HostExit)
	assert.Equal(t, 0, *v.HostExit)
}

func TestRun_TimeoutKillsHostAndChildren(t *testing.T) {
	cfg := helperConfig(t, "smoke")
	cfg.Host.Env = []string{envHelperMode + "=orphan-hang"}
	cfg.Run.Timeout = time.Second

	began := time.Now()
	v := runOnce(t, cfg)
	assert.Less(t, time.Since(began), 10*time.Second)
	assert.Equal(t, ir.FailureTimeout, v.FailureKind, v.Summary())
	require.NotNil(t, v.HostExit)
	assert.Equal(t, -1, *v.HostExit)
}

func TestRun_OversizedOutputLineKeepsHostRunning(t *testing.T) {
	cfg := helperConfig(t, "smoke")
	cfg.Host.Env = append(cfg.Host.Env, envHelperMode+"=long-line")

	v := runOnce(t, cfg)
	assert.True(t, v.Passed, v.Summary())
	assert.Equal(t, 3, v.TotalSteps)
}

func TestRun_DistinctRunsUseDistinctSinks(t *testing.T) {
	cfg := helperConfig(t, "failing")
	gen := testutil.NewFixedRunIDGenerator("first", "second")
	withGen := func(o *Options) { o.RunIDs = gen }

	a := runOnce(t, cfg, withGen)
	b := runOnce(t, cfg, withGen)

	assert.Equal(t, "first", a.RunID)
	assert.Equal(t, "second", b.RunID)
	assert.NotEqual(t, sink.PathFor(cfg.Run.SinkDir, a.RunID), sink.PathFor(cfg.Run.SinkDir, b.RunID))
	assert.Equal(t, a.Results, b.Results)
}

func TestRun_SetupFailures(t *testing.T) {
	tests := map[string]func(*config.Config){
		"missing executable": func(c *config.Config) { c.Host.Path = filepath.Join(t.TempDir(), "no-such-host") },
		"invalid sink dir": func(c *config.Config) {
			file := filepath.Join(t.TempDir(), "file")
			require.NoError(t, os.WriteFile(file, nil, 0o644))
			c.Run.SinkDir = file
		},
		"not executable": func(c *config.Config) {
			file := filepath.Join(t.TempDir(), "host.txt")
			require.NoError(t, os.WriteFile(file, []byte("text"), 0o644))
			c.Host.Path = file
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := helperConfig(t, "smoke")
			mutate(&cfg)

			v := runOnce(t, cfg)
			assert.False(t, v.Passed)
			assert.Equal(t, ir.FailureSetup, v.FailureKind)
			assert.Equal(t, ir.ExitSetup, v.ExitCode())
			assert.Nil(t, v.HostExit)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

type fakeResolver struct {
	host acquire.Host
	err  error
	spec string
}

func (f *fakeResolver) Acquire(_ context.Context, spec string) (acquire.Host, error) {
	f.spec = spec
	return f.host, f.err
}

func TestRun_ResolverFailureIsSetupFailure(t *testing.T) {
	cfg := helperConfig(t, "smoke")
	cfg.Host.Path = ""
	cfg.Host.Manifest = "unused"
	cfg.Host.Version = "9.9"
	res := &fakeResolver{err: acquire.ErrUnresolvedVersion}

	v := runOnce(t, cfg, func(o *Options) { o.Resolver = res })
	assert.Equal(t, "9.9", res.spec)
	assert.Equal(t, ir.FailureSetup, v.FailureKind)
	assert.Contains(t, v.Reason, "resolve host")
}

func TestRun_ResolvedHostIsLaunched(t *testing.T) {
	cfg := helperConfig(t, "")
	cfg.Host.Path = ""
	cfg.Host.Manifest = "unused"
	cfg.Host.Args = []string{"--tick", "5ms", "--log-level", "warn"}
	cfg.Host.Plugin = config.PluginConfig{Suite: "smoke"}
	res := &fakeResolver{host: acquire.Host{Version: "7.2.0", Home: t.TempDir(), Executable: os.Args[0]}}

	v := runOnce(t, cfg, func(o *Options) { o.Resolver = res })
	assert.True(t, v.Passed, v.Summary())
	assert.Equal(t, "7.2.0", v.HostVersion)
}

type captureRecorder struct {
	got []*ir.HarnessVerdict
	err error
}

func (c *captureRecorder) Record(_ context.Context, v *ir.HarnessVerdict) error {
	c.got = append(c.got, v)
	return c.err
}

func TestRun_RecordersSeeVerdict(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 4*time.Second)
	ok := &captureRecorder{}
	broken := &captureRecorder{err: errors.New("disk full")}

	v := runOnce(t, helperConfig(t, "smoke"), func(o *Options) {
		o.Now = clock.Now
		o.Recorders = []Recorder{broken, ok}
	})

	require.Len(t, ok.got, 1)
	assert.Same(t, v, ok.got[0])
	assert.True(t, v.Passed, "recorder errors never change the verdict")
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), v.StartedAt)
	assert.Equal(t, 4*time.Second, v.Duration)
}

func TestRun_ContextCancel(t *testing.T) {
	cfg := helperConfig(t, "hang")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v := New(Options{Config: cfg}).Run(ctx)
	assert.Equal(t, ir.FailureTimeout, v.FailureKind)
	assert.Contains(t, v.Reason, "interrupted")
}
