package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/config"
	"github.com/roach88/hostbench/internal/launcher"
	"github.com/roach88/hostbench/internal/logging"
	"github.com/roach88/hostbench/internal/metrics"
	"github.com/roach88/hostbench/internal/store"
)

// loadConfig reads --config (if any) and HOSTBENCH_* overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg, err := config.Load(opts.ConfigPath, getenv)
	if err != nil {
		return cfg, WrapExitError(ExitSetup, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs configured for stderr go to
// the command's error writer; --verbose lowers the level to debug.
func newLogger(cmd *cobra.Command, opts *RootOptions, cfg logging.Config) (*logging.Logger, error) {
	if cfg.Output == "" || cfg.Output == "stderr" {
		cfg.Writer = cmd.ErrOrStderr()
	}
	if opts.Verbose {
		cfg.Level = "debug"
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, WrapExitError(ExitSetup, "failed to create logger", err)
	}
	return logger, nil
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openHistory opens the run history database, creating its directory.
func openHistory(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	return store.Open(path)
}

// recorders builds the verdict recorders the config enables. The returned
// closer releases them.
func recorders(cfg config.Config, logger *slog.Logger) ([]launcher.Recorder, io.Closer, error) {
	var recs []launcher.Recorder
	var closer io.Closer = nopCloser{}

	if !cfg.History.Disabled {
		st, err := openHistory(cfg.History.DB)
		if err != nil {
			return nil, nil, WrapExitError(ExitSetup, "failed to open history database", err)
		}
		logger.Debug("history enabled", "db", cfg.History.DB)
		recs = append(recs, launcher.HistoryRecorder{Store: st})
		closer = st
	}

	if cfg.Metrics.PushgatewayURL != "" {
		m, err := metrics.NewRecorder()
		if err != nil {
			closer.Close()
			return nil, nil, WrapExitError(ExitSetup, "failed to create metrics", err)
		}
		grouping := map[string]string{}
		if suite := cfg.Host.Plugin.Suite; suite != "" {
			grouping["suite"] = suite
		}
		logger.Debug("metrics enabled", "pushgateway", cfg.Metrics.PushgatewayURL)
		recs = append(recs, launcher.MetricsRecorder{
			Metrics: m,
			Push: metrics.PushConfig{
				URL:      cfg.Metrics.PushgatewayURL,
				Job:      cfg.Metrics.Job,
				Grouping: grouping,
			},
		})
	}
	return recs, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
