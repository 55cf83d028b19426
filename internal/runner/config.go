package runner

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/roach88/hostbench/internal/sink"
)

// Environment variables through which the launcher configures a run inside
// the host process.
const (
	EnvRunID         = "HOSTBENCH_RUN_ID"
	EnvSinkDir       = "HOSTBENCH_SINK_DIR"
	EnvTimeout       = "HOSTBENCH_TIMEOUT"
	EnvStopOnFailure = "HOSTBENCH_STOP_ON_FAILURE"
)

// RunConfig is the run configuration surface passed to the host process.
type RunConfig struct {
	RunID   string
	SinkDir string
	// Timeout is informational inside the host; the launcher enforces it.
	Timeout       time.Duration
	StopOnFailure bool
}

// Integration reports whether the host was launched for an integration run.
func (c RunConfig) Integration() bool {
	return c.RunID != ""
}

// Environ renders the config as KEY=value pairs for exec.Cmd.Env.
func (c RunConfig) Environ() []string {
	env := []string{
		EnvRunID + "=" + c.RunID,
		EnvSinkDir + "=" + c.SinkDir,
	}
	if c.Timeout > 0 {
		env = append(env, EnvTimeout+"="+c.Timeout.String())
	}
	if c.StopOnFailure {
		env = append(env, EnvStopOnFailure+"=true")
	}
	return env
}

// ConfigFromEnv reads the run configuration using getenv (os.Getenv when
// nil). A missing run id yields a zero config: the plugin was loaded
// without a launcher, for manual use.
func ConfigFromEnv(getenv func(string) string) (RunConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := RunConfig{
		RunID:   getenv(EnvRunID),
		SinkDir: getenv(EnvSinkDir),
	}
	if cfg.RunID == "" {
		return RunConfig{}, nil
	}
	if err := sink.ValidateRunID(cfg.RunID); err != nil {
		return RunConfig{}, err
	}
	if cfg.SinkDir == "" {
		return RunConfig{}, fmt.Errorf("%s is set but %s is empty", EnvRunID, EnvSinkDir)
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return RunConfig{}, fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v := getenv(EnvStopOnFailure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return RunConfig{}, fmt.Errorf("parse %s: %w", EnvStopOnFailure, err)
		}
		cfg.StopOnFailure = b
	}
	return cfg, nil
}
