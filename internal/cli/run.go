package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/config"
	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/launcher"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Version       string
	HostPath      string
	Suite         string
	Timeout       time.Duration
	StopOnFailure bool

	// RunIDs and Now override run id generation and the clock (for testing).
	RunIDs launcher.RunIDGenerator
	Now    func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the host and run the test plugin",
		Long: `Resolve the host application, install the test plugin, launch the host and
wait for the run to complete. The exit code classifies the run.

Example:
  hostbench run --config hostbench.yaml
  hostbench run --version 7.0.0 --suite smoke --timeout 2m
  hostbench run --host-path ./simhost --suite failing --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(cmd, opts)
		},
	}

	addRunFlags(cmd, opts)

	return cmd
}

// addRunFlags registers the flags shared by run and schedule.
func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVar(&opts.Version, "version", "", `host version, or "latest"`)
	cmd.Flags().StringVar(&opts.HostPath, "host-path", "", "host executable (skips acquisition)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "suite to install as the host plugin")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "run timeout (default from config, 2m)")
	cmd.Flags().BoolVar(&opts.StopOnFailure, "stop-on-failure", false, "finish the run at the first failed step")
}

// runConfig loads the config, applies run flags and validates the result.
func (o *RunOptions) runConfig() (config.Config, error) {
	cfg, err := loadConfig(o.RootOptions)
	if err != nil {
		return cfg, err
	}
	o.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitSetup, "invalid config", err)
	}
	return cfg, nil
}

// apply layers flags over the loaded config.
func (o *RunOptions) apply(cfg *config.Config) {
	if o.Version != "" {
		cfg.Host.Version = o.Version
	}
	if o.HostPath != "" {
		cfg.Host.Path = o.HostPath
	}
	if o.Suite != "" {
		cfg.Host.Plugin.Suite = o.Suite
	}
	if o.Timeout > 0 {
		cfg.Run.Timeout = o.Timeout
	}
	if o.StopOnFailure {
		cfg.Run.StopOnFailure = true
	}
}

func runHarness(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := opts.runConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, opts.RootOptions, cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	v, err := runOnce(ctx, cfg, opts, logger.Logger)
	if err != nil {
		return err
	}
	if err := newFormatter(cmd, opts.RootOptions).Verdict(v); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if code := v.ExitCode(); code != ExitSuccess {
		return NewExitError(code, v.Summary())
	}
	return nil
}

// runOnce performs one launcher run with the recorders cfg enables.
func runOnce(ctx context.Context, cfg config.Config, opts *RunOptions, logger *slog.Logger) (*ir.HarnessVerdict, error) {
	recs, closer, err := recorders(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error("error closing history database", "error", err)
		}
	}()

	l := launcher.New(launcher.Options{
		Config:    cfg,
		Logger:    logger,
		RunIDs:    opts.RunIDs,
		Now:       opts.Now,
		Recorders: recs,
	})
	return l.Run(ctx), nil
}
