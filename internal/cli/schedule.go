package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/schedule"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RunOptions
	Cron string
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RunOptions: &RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the harness on a cron schedule",
		Long: `Run the harness repeatedly on a cron schedule until interrupted. Each run
is recorded in the history database and pushed to the Pushgateway when one is
configured.

Example:
  hostbench schedule --cron "0 2 * * *" --config hostbench.yaml
  hostbench schedule --cron "@every 30m" --suite smoke`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Cron, "cron", "", `cron expression, e.g. "0 2 * * *" or "@hourly" (required)`)
	_ = cmd.MarkFlagRequired("cron")
	addRunFlags(cmd, opts.RunOptions)

	return cmd
}

func runSchedule(cmd *cobra.Command, opts *ScheduleOptions) error {
	cfg, err := opts.runConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, opts.RootOptions, cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()

	f := newFormatter(cmd, opts.RootOptions)
	trigger, err := schedule.NewTrigger(opts.Cron, func(ctx context.Context) error {
		v, err := runOnce(ctx, cfg, opts.RunOptions, logger.Logger)
		if err != nil {
			return err
		}
		if err := f.Verdict(v); err != nil {
			return err
		}
		if !v.Passed {
			return errors.New(v.Summary())
		}
		return nil
	}, logger.Logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid schedule", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("schedule started", "cron", trigger.Spec(), "next_run", trigger.NextRun())
	runs := trigger.Run(ctx)
	f.VerboseLog("schedule stopped after %d runs", runs)
	return nil
}
