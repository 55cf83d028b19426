package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hostbench/internal/ir"
	"github.com/roach88/hostbench/internal/sink"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	SinkDir string
}

// RunResults is the parsed content of one run's result sink.
type RunResults struct {
	RunID      string          `json:"run_id"`
	Complete   bool            `json:"complete"`
	TotalSteps int             `json:"total_steps"`
	Results    []ir.StepResult `json:"results"`
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results <run-id>",
		Short: "Print the recorded results of a run",
		Long: `Read the result sink of a run, including runs that crashed or timed out
before writing their completion marker.

Example:
  hostbench results 0190f3a2-8c4e-7b1a-9d2f-3e4a5b6c7d8e
  hostbench results my-run --sink-dir ./runs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResults(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.SinkDir, "sink-dir", "", "result sink directory (default from config)")

	return cmd
}

func runResults(cmd *cobra.Command, opts *ResultsOptions, runID string) error {
	dir := opts.SinkDir
	if dir == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		dir = cfg.Run.SinkDir
	}

	manifest, results, err := sink.Load(dir, runID)
	if errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("no results for run %s in %s", runID, dir), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results", err)
	}

	rr := RunResults{
		RunID:      runID,
		Complete:   manifest.Complete,
		TotalSteps: manifest.TotalSteps,
		Results:    results,
	}
	if rr.Results == nil {
		rr.Results = []ir.StepResult{}
	}

	f := newFormatter(cmd, opts.RootOptions)
	if opts.Format == "json" {
		return f.Success(rr)
	}

	f.Results(rr.Results)
	w := cmd.OutOrStdout()
	if rr.Complete {
		fmt.Fprintf(w, "run %s complete: %d of %d steps recorded\n", runID, len(rr.Results), rr.TotalSteps)
	} else {
		fmt.Fprintf(w, "run %s incomplete: %d steps recorded, no completion marker\n", runID, len(rr.Results))
	}
	return nil
}
