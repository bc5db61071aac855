package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // assertion failures, replay divergence
	ExitCommandError = 2 // bad input, build or environment failure
)

// ExitError carries the exit code a failed command maps to.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an existing error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error to the process exit code. Errors that carry
// no code count as failures, not command errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Printer renders command output. In text mode the line helpers
// (Outcome, Detail, Summary) write human-readable output and Result is
// a no-op; with --format json they are no-ops and Result emits a single
// {"status": ..., "data": ...} envelope instead. Verbose diagnostics
// always go to Diag so JSON output stays parseable.
type Printer struct {
	JSON    bool
	Out     io.Writer
	Diag    io.Writer
	Verbose bool
}

func newPrinter(opts *RootOptions, cmd *cobra.Command) *Printer {
	return &Printer{
		JSON:    opts.Format == "json",
		Out:     cmd.OutOrStdout(),
		Diag:    cmd.ErrOrStderr(),
		Verbose: opts.Verbose,
	}
}

type jsonEnvelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *jsonError `json:"error,omitempty"`
}

type jsonError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Result emits the command's machine-readable payload in JSON mode.
func (p *Printer) Result(data any) error {
	if !p.JSON {
		return nil
	}
	return json.NewEncoder(p.Out).Encode(jsonEnvelope{Status: "ok", Data: data})
}

// Fail emits a structured error report in the configured format.
func (p *Printer) Fail(code, message string, details any) error {
	if p.JSON {
		return json.NewEncoder(p.Out).Encode(jsonEnvelope{
			Status: "error",
			Error:  &jsonError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(p.Out, "Error [%s]: %s\n", code, message)
	if p.Verbose && details != nil {
		fmt.Fprintf(p.Out, "Details: %v\n", details)
	}
	return nil
}

// Outcome prints one status line, e.g. "PASS  error-return (4200ms)".
func (p *Printer) Outcome(status, label, note string) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Out, "%s  %s (%s)\n", status, label, note)
}

// Detail prints an indented line under the preceding Outcome.
func (p *Printer) Detail(format string, args ...any) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Out, "  "+format+"\n", args...)
}

// Summary prints an unindented closing line.
func (p *Printer) Summary(format string, args ...any) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// Verbosef prints a diagnostic line when --verbose is set.
func (p *Printer) Verbosef(format string, args ...any) {
	if !p.Verbose {
		return
	}
	fmt.Fprintf(p.Diag, format+"\n", args...)
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
