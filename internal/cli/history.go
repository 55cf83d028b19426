package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/store"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Step     string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded run verdicts",
		Long: `List the verdicts recorded by previous runs, newest first. With a run id,
print that run's step results. With --step, list one step's results across runs.

Example:
  hostbench history --limit 10
  hostbench history 0190f3a2-8c4e-7b1a-9d2f-3e4a5b6c7d8e
  hostbench history --step "read ext state"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "history database (default from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of entries, 0 for all")
	cmd.Flags().StringVar(&opts.Step, "step", "", "show the history of one step name")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		path = cfg.History.DB
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "history database not found", err)
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	f := newFormatter(cmd, opts.RootOptions)

	switch {
	case len(args) == 1:
		v, err := st.ReadRun(ctx, args[0])
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "unknown run "+args[0], err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		return f.Verdict(&v)

	case opts.Step != "":
		entries, err := st.ReadStepHistory(ctx, opts.Step, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if opts.Format == "json" {
			if entries == nil {
				entries = []store.StepHistory{}
			}
			return f.Success(entries)
		}
		writeStepHistory(f, opts.Step, entries)
		return nil

	default:
		runs, err := st.ReadRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		if opts.Format == "json" {
			if runs == nil {
				runs = []ir.HarnessVerdict{}
			}
			return f.Success(runs)
		}
		writeRuns(f, runs)
		return nil
	}
}

func writeRuns(f *OutputFormatter, runs []ir.HarnessVerdict) {
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded")
		return
	}
	s := f.styles()
	idWidth, versionWidth := 0, 1
	for _, v := range runs {
		idWidth = max(idWidth, len(v.RunID))
		versionWidth = max(versionWidth, len(v.HostVersion))
	}
	for _, v := range runs {
		status := s.fail.Render("FAILED")
		if v.Passed {
			status = s.pass.Render("PASSED")
		}
		version := v.HostVersion
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(f.Writer, "%s  %s  %s  %s  %s\n",
			v.StartedAt.UTC().Format(historyTimeLayout),
			pad(v.RunID, idWidth),
			pad(version, versionWidth),
			status,
			runSummary(&v))
	}
}

// runSummary describes a run listed without its step results.
func runSummary(v *ir.HarnessVerdict) string {
	switch v.FailureKind {
	case ir.FailureNone:
		return fmt.Sprintf("%d steps", v.TotalSteps)
	case ir.FailureStep:
		return fmt.Sprintf("%d steps, step failure", v.TotalSteps)
	default:
		return fmt.Sprintf("%s: %s", v.FailureKind, v.Reason)
	}
}

func writeStepHistory(f *OutputFormatter, step string, entries []store.StepHistory) {
	if len(entries) == 0 {
		fmt.Fprintf(f.Writer, "No results recorded for step %q\n", step)
		return
	}
	s := f.styles()
	idWidth := 0
	for _, e := range entries {
		idWidth = max(idWidth, len(e.RunID))
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %s",
			e.StartedAt.UTC().Format(historyTimeLayout),
			pad(e.RunID, idWidth),
			s.outcome(e.Result.Outcome))
		if e.Result.Message != "" {
			line += "  " + e.Result.Message
		}
		fmt.Fprintln(f.Writer, strings.TrimRight(line, " "))
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
