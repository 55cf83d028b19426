package simhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/logging"
	"github.com/roach88/hostbench/internal/runner"
	"github.com/roach88/hostbench/internal/step"
	"github.com/roach88/hostbench/internal/store"
	"github.com/roach88/hostbench/internal/suites"
)

// DefaultVersion is reported when no version is configured.
const DefaultVersion = "7.0.0"

// ExtStateFile is the extension-state database under the host home.
const ExtStateFile = "extstate.db"

// EnvHome supplies the default for --home.
const EnvHome = "HOSTBENCH_HOST_HOME"

// Options configures one host process.
type Options struct {
	Version string
	// Home is the host's resource directory. Plugins are loaded from
	// Home/UserPlugins and persisted ext state lives in Home/extstate.db.
	Home string
	// Suite loads the named built-in suite directly, bypassing plugin
	// descriptors.
	Suite string
	Tick  time.Duration
	// RunAction performs the harness action once and exits instead of
	// entering the main loop.
	RunAction bool

	Console io.Writer
	Logger  *slog.Logger
	// Getenv reads the run configuration. Defaults to os.Getenv.
	Getenv func(string) string
	// NewQueue creates the harness queue. Defaults to installing the
	// process-wide queue.
	NewQueue func(hostVersion string) *step.Queue
}

// Run starts a host, loads the harness plugin and runs the main loop.
// It returns the exit code the host terminated with.
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewQueue == nil {
		opts.NewQueue = func(v string) *step.Queue {
			return step.Install(step.NewQueue(v))
		}
	}

	cfg := Config{Version: opts.Version, Console: opts.Console, Logger: opts.Logger}
	if opts.Home != "" {
		if err := os.MkdirAll(opts.Home, 0o755); err != nil {
			return 1, fmt.Errorf("create home: %w", err)
		}
		st, err := store.Open(filepath.Join(opts.Home, ExtStateFile))
		if err != nil {
			return 1, fmt.Errorf("open ext state: %w", err)
		}
		defer st.Close()
		cfg.Persist = st
	}
	host := New(cfg)

	plugin, err := loadHarness(host, opts)
	if err != nil {
		return 1, err
	}

	if opts.RunAction {
		if plugin == nil {
			return 1, errors.New("no harness plugin loaded")
		}
		if err := host.PerformAction(plugin.Action()); err != nil {
			opts.Logger.Error("manual run failed", "error", err)
			return 1, nil
		}
		return 0, nil
	}

	return host.Loop(ctx, opts.Tick)
}

// loadHarness selects the suite from opts.Suite or from the single plugin
// descriptor in Home/UserPlugins, then performs the plugin's load hook.
// It returns nil when no plugin is installed.
func loadHarness(host *Host, opts Options) (*runner.Plugin, error) {
	desc := PluginDescriptor{Suite: opts.Suite, Action: DefaultAction}
	if opts.Suite == "" {
		if opts.Home == "" {
			opts.Logger.Warn("no suite and no home directory, running without harness")
			return nil, nil
		}
		plugins, err := LoadPlugins(filepath.Join(opts.Home, PluginDir))
		if err != nil {
			return nil, err
		}
		switch len(plugins) {
		case 0:
			opts.Logger.Warn("no harness plugin installed", "dir", filepath.Join(opts.Home, PluginDir))
			return nil, nil
		case 1:
			desc = plugins[0]
		default:
			return nil, fmt.Errorf("%d harness plugins installed, want at most one", len(plugins))
		}
	}

	suite, err := suites.Lookup(desc.Suite)
	if err != nil {
		return nil, err
	}
	runCfg, err := runner.ConfigFromEnv(opts.Getenv)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}

	plugin, err := runner.Setup(host, desc.Action,
		runner.WithQueue(opts.NewQueue(host.Version())),
		runner.WithRunConfig(runCfg),
		runner.WithLogger(opts.Logger.With("suite", suite.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("load harness: %w", err)
	}
	if err := suite.Push(plugin.Queue()); err != nil {
		return nil, err
	}
	opts.Logger.Info("harness plugin loaded",
		"suite", suite.Name,
		"steps", plugin.Queue().Len(),
		"skipped", plugin.Queue().Skipped(),
		"integration", runCfg.Integration(),
	)
	return plugin, nil
}

// NewCommand creates the simhost root command. The exit code chosen by the
// host is stored in *code.
func NewCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	opts := Options{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "simhost",
		Short:         "Single-threaded host application for hostbench runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logging.Config{Level: logLevel, Format: "text", Writer: stderr})
			if err != nil {
				return err
			}
			opts.Logger = logger.Logger
			opts.Console = stdout

			c, err := Run(cmd.Context(), opts)
			*code = c
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Version, "host-version", DefaultVersion, "version reported to plugins")
	cmd.Flags().StringVar(&opts.Home, "home", os.Getenv(EnvHome), "resource directory (plugins, ext state)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "built-in suite to load instead of installed plugins")
	cmd.Flags().DurationVar(&opts.Tick, "tick", DefaultTick, "main loop timer interval")
	cmd.Flags().BoolVar(&opts.RunAction, "run-action", false, "perform the harness action once and exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd
}

// Main runs the simhost command line and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := 0
	cmd := NewCommand(stdout, stderr, &code)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "simhost: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}
