package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/acquire"
	"github.com/roach88/hostbench/internal/ir"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Manifest string
	CacheDir string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <version>",
		Short: "Download, verify and cache a host release",
		Long: `Resolve a version descriptor against the version manifest, install the
release into the cache if needed and print the host executable path.

Example:
  hostbench resolve latest
  hostbench resolve 7.0.0 --manifest https://example.com/hosts.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "version manifest path or URL (default from config)")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "release cache directory (default from config)")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, version string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Manifest != "" {
		cfg.Host.Manifest = opts.Manifest
	}
	if opts.CacheDir != "" {
		cfg.Host.CacheDir = opts.CacheDir
	}
	if cfg.Host.Manifest == "" {
		return WrapExitError(ExitSetup, "cannot resolve", errors.New("no version manifest configured"))
	}

	logger, err := newLogger(cmd, opts.RootOptions, cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	a, err := acquire.New(acquire.Config{
		Manifest:  cfg.Host.Manifest,
		CacheDir:  cfg.Host.CacheDir,
		Logger:    logger.Logger,
		UserAgent: "hostbench/" + ir.HarnessVersion,
	})
	if err != nil {
		return WrapExitError(ExitSetup, "cannot resolve", err)
	}
	host, err := a.Acquire(cmd.Context(), version)
	if err != nil {
		return WrapExitError(ExitSetup, "cannot resolve "+version, err)
	}

	f := newFormatter(cmd, opts.RootOptions)
	f.VerboseLog("resolved %s (cached: %v, home: %s)", host.Version, host.Cached, host.Home)
	if opts.Format == "json" {
		return f.Success(host)
	}
	return f.Success(host.Executable)
}
