package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/hostbench/internal/ir"
)

// Exit codes for CLI commands. The run command exits with the verdict's
// code; every other command uses ExitSuccess or ExitCommandError.
const (
	ExitSuccess      = ir.ExitPassed      // Successful execution
	ExitStepFailure  = ir.ExitStepFailure // Run completed with failed or aborted steps
	ExitCrash        = ir.ExitCrash       // Host exited before the completion marker
	ExitTimeout      = ir.ExitTimeout     // No completion marker within the timeout
	ExitSetup        = ir.ExitSetup       // Config, resolution or launch failure
	ExitCommandError = ir.ExitSetup       // Command error (bad flags, missing run, unreadable files)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitCommandError if the error is not an
// ExitError (flag parsing and other cobra errors).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E002", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// palette colors outcome words when Writer is a color terminal. Other
// writers get plain text.
type palette struct {
	pass, fail, dim lipgloss.Style
}

func (f *OutputFormatter) styles() palette {
	r := lipgloss.NewRenderer(f.Writer)
	return palette{
		pass: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		fail: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		dim:  r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// outcome renders a result tag padded to a fixed column.
func (s palette) outcome(o ir.StepOutcome) string {
	tag := o.Tag()
	style := s.fail
	if o == ir.OutcomePass {
		style = s.pass
	}
	return style.Render(tag) + strings.Repeat(" ", len(ir.TagAborted)-len(tag))
}

// Results writes one line per step result.
func (f *OutputFormatter) Results(results []ir.StepResult) {
	s := f.styles()
	for _, r := range results {
		line := fmt.Sprintf("%s [%d] %s", s.outcome(r.Outcome), r.Seq, r.StepName)
		if r.Message == "" {
			fmt.Fprintln(f.Writer, line)
			continue
		}
		// Continuation lines of a message are indented under the step.
		msg := strings.Split(r.Message, "\n")
		fmt.Fprintln(f.Writer, line+s.dim.Render(": "+msg[0]))
		for _, l := range msg[1:] {
			fmt.Fprintln(f.Writer, "    "+s.dim.Render(l))
		}
	}
}

// Verdict outputs a harness verdict: the results followed by a status line.
func (f *OutputFormatter) Verdict(v *ir.HarnessVerdict) error {
	if f.Format == "json" {
		return f.Success(v)
	}

	s := f.styles()
	f.Results(v.Results)
	if len(v.Results) > 0 {
		fmt.Fprintln(f.Writer)
	}

	status := s.fail.Render("✗ FAILED")
	if v.Passed {
		status = s.pass.Render("✓ PASSED")
	}
	fmt.Fprintf(f.Writer, "%s %s: %s\n", status, v.RunID, v.Summary())

	details := []string{"exit code " + fmt.Sprint(v.ExitCode())}
	if v.HostVersion != "" {
		details = append(details, "host "+v.HostVersion)
	}
	if v.HostExit != nil {
		details = append(details, fmt.Sprintf("host exit %d", *v.HostExit))
	}
	details = append(details, v.Duration.Round(time.Millisecond).String())
	fmt.Fprintln(f.Writer, s.dim.Render("  "+strings.Join(details, ", ")))
	return nil
}
