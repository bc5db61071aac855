package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/faasprobe/faasprobe/internal/harness"
	"github.com/faasprobe/faasprobe/internal/runner"
	"github.com/faasprobe/faasprobe/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	GoBin    string
}

// RunOutput is the run command's result payload.
type RunOutput struct {
	Scenario   string   `json:"scenario"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a single scenario",
		Long: `Execute one conformance scenario: generate the cloud function, build and
run it in a subprocess, correlate the captured telemetry, and evaluate
the scenario's assertions.

Exit codes:
  0 - Scenario passed
  1 - Assertions failed
  2 - Command error (invalid scenario, build failure, etc.)

Examples:
  faasprobe run scenarios/handled-exception.yaml
  faasprobe run scenarios/timeout.yaml --db ./runs.db
  faasprobe run scenarios/perf.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "archive the run in this SQLite database")
	cmd.Flags().StringVar(&opts.GoBin, "go-bin", "", "Go toolchain binary (defaults to go on PATH)")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	h := harness.New(runner.Config{
		GoBin:  opts.GoBin,
		Stderr: cmd.ErrOrStderr(),
	})

	startedAt := time.Now()
	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	output := RunOutput{
		Scenario:   scenario.Name,
		Pass:       result.Pass,
		Errors:     result.Errors,
		DurationMS: result.DurationMS,
	}

	if opts.Database != "" {
		runID, err := archiveRun(opts.Database, scenario.Name, startedAt, result)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to archive run", err)
		}
		output.RunID = runID
	}

	p := newPrinter(opts.RootOptions, cmd)
	p.Outcome(passStatus(output.Pass), output.Scenario, fmt.Sprintf("%dms", output.DurationMS))
	for _, msg := range output.Errors {
		p.Detail("%s", msg)
	}
	if output.RunID != "" {
		p.Summary("archived as run %s", output.RunID)
	}
	if err := p.Result(output); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d assertion error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

func archiveRun(dbPath, scenarioName string, startedAt time.Time, result *harness.Result) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run := store.Run{
		ID:           store.NewRunID(),
		Scenario:     scenarioName,
		StartedAt:    startedAt,
		DurationMS:   result.DurationMS,
		Pass:         result.Pass,
		RawOutput:    result.Stdout,
		EventJSON:    result.EventPayload,
		EnvelopeJSON: result.EnvelopePayload,
	}
	if err := st.SaveRun(context.Background(), run); err != nil {
		return "", err
	}
	return run.ID, nil
}
