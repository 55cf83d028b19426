// Package config loads the hostbench launcher configuration.
//
// Values come from, in increasing precedence: built-in defaults, a YAML
// file, HOSTBENCH_* environment variables, and command-line flags applied
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hostbench/internal/hostversion"
	"github.com/roach88/hostbench/internal/logging"
)

const (
	defaultVersion      = hostversion.Latest
	defaultTimeout      = 120 * time.Second
	defaultPollInterval = 100 * time.Millisecond
	defaultGrace        = 5 * time.Second
	defaultMetricsJob   = "hostbench"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultLogOutput    = "stderr"
)

// Environment overrides read by Load.
const (
	EnvHostVersion    = "HOSTBENCH_HOST_VERSION"
	EnvHostPath       = "HOSTBENCH_HOST_PATH"
	EnvManifest       = "HOSTBENCH_MANIFEST"
	EnvCacheDir       = "HOSTBENCH_CACHE_DIR"
	EnvRunTimeout     = "HOSTBENCH_RUN_TIMEOUT"
	EnvRunsDir        = "HOSTBENCH_RUNS_DIR"
	EnvLogLevel       = "HOSTBENCH_LOG_LEVEL"
	EnvPushgatewayURL = "HOSTBENCH_PUSHGATEWAY_URL"
	EnvHistoryDB      = "HOSTBENCH_HISTORY_DB"
)

// Config represents the complete launcher configuration
type Config struct {
	Host    HostConfig     `yaml:"host"`
	Run     RunConfig      `yaml:"run"`
	Logging logging.Config `yaml:"logging"`
	Metrics MetricsConfig  `yaml:"metrics"`
	History HistoryConfig  `yaml:"history"`
}

// HostConfig selects and prepares the host application
type HostConfig struct {
	// Version is "latest" or an exact manifest version
	Version string `yaml:"version"`
	// Manifest is the path or URL of the version manifest
	Manifest string `yaml:"manifest"`
	CacheDir string `yaml:"cache_dir"`

	// Path names a host executable directly and skips acquisition
	Path string `yaml:"path"`
	// Home is the host resource directory used with Path. The host runs in
	// it; plugins and ext state go to a fresh home per run
	Home string `yaml:"home"`

	Args []string `yaml:"args"`
	// Env holds extra KEY=value pairs for the host environment
	Env    []string     `yaml:"env"`
	Plugin PluginConfig `yaml:"plugin"`
}

// PluginConfig is the harness plugin installed into the host before launch
type PluginConfig struct {
	Suite  string `yaml:"suite"`
	Action string `yaml:"action"`
}

// RunConfig controls a single harness run
type RunConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Grace is how long a host may keep running after completing its run
	Grace         time.Duration `yaml:"grace"`
	SinkDir       string        `yaml:"sink_dir"`
	StopOnFailure bool          `yaml:"stop_on_failure"`
}

// MetricsConfig holds Pushgateway settings. Metrics are off when the URL is empty.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// HistoryConfig locates the run history database
type HistoryConfig struct {
	DB       string `yaml:"db"`
	Disabled bool   `yaml:"disabled"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Host.Path == "" && c.Host.Manifest == "" {
		return errors.New("either host.path or host.manifest is required")
	}
	if c.Host.Path == "" && c.Host.Version != hostversion.Latest && !hostversion.Valid(c.Host.Version) {
		return fmt.Errorf("host.version %q is neither %q nor a version", c.Host.Version, hostversion.Latest)
	}
	if c.Run.Timeout <= 0 {
		return errors.New("run.timeout must be positive")
	}
	if c.Run.PollInterval <= 0 {
		return errors.New("run.poll_interval must be positive")
	}
	if c.Run.PollInterval >= c.Run.Timeout {
		return fmt.Errorf("run.poll_interval %s must be shorter than run.timeout %s", c.Run.PollInterval, c.Run.Timeout)
	}
	if c.Run.Grace < 0 {
		return errors.New("run.grace must not be negative")
	}
	if c.Run.SinkDir == "" {
		return errors.New("run.sink_dir is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SetDefaults sets default values for optional fields
func (c *Config) SetDefaults() {
	base := baseDir()
	if c.Host.Version == "" {
		c.Host.Version = defaultVersion
	}
	if c.Host.CacheDir == "" {
		c.Host.CacheDir = filepath.Join(base, "hosts")
	}
	if c.Run.Timeout == 0 {
		c.Run.Timeout = defaultTimeout
	}
	if c.Run.PollInterval == 0 {
		c.Run.PollInterval = defaultPollInterval
	}
	if c.Run.Grace == 0 {
		c.Run.Grace = defaultGrace
	}
	if c.Run.SinkDir == "" {
		c.Run.SinkDir = filepath.Join(base, "runs")
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = defaultMetricsJob
	}
	if c.History.DB == "" {
		c.History.DB = filepath.Join(base, "history.db")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// ApplyEnv overrides fields from HOSTBENCH_* variables read with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str(EnvHostVersion, &c.Host.Version)
	str(EnvHostPath, &c.Host.Path)
	str(EnvManifest, &c.Host.Manifest)
	str(EnvCacheDir, &c.Host.CacheDir)
	str(EnvRunsDir, &c.Run.SinkDir)
	str(EnvLogLevel, &c.Logging.Level)
	str(EnvPushgatewayURL, &c.Metrics.PushgatewayURL)
	str(EnvHistoryDB, &c.History.DB)

	if v := getenv(EnvRunTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRunTimeout, err)
		}
		c.Run.Timeout = d
	}
	return nil
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(n) * time.Second, nil
}

// Default returns the configuration used without a file or environment.
// It fails validation until a host path or manifest is set.
func Default() Config {
	var c Config
	c.SetDefaults()
	return c
}

// Parse decodes YAML, rejecting unknown fields. Defaults are not applied.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults. The result is not validated so
// callers can layer flags on top before calling Validate.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

// resolvePaths makes relative file paths in the config relative to dir.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Host.CacheDir, &c.Host.Path, &c.Host.Home, &c.Run.SinkDir, &c.History.DB} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	if c.Host.Manifest != "" && !filepath.IsAbs(c.Host.Manifest) && !isURL(c.Host.Manifest) {
		c.Host.Manifest = filepath.Join(dir, c.Host.Manifest)
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "file://")
}

// baseDir is the per-user data directory for caches, runs and history.
func baseDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "hostbench")
	}
	return filepath.Join(os.TempDir(), "hostbench")
}
