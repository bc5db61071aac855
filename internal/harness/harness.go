// Package harness runs conformance scenarios against the monitoring
// SDK's serverless wrapper: it generates a cloud function from each
// scenario, executes it in an isolated subprocess, correlates the
// line-tagged telemetry it emits, and evaluates the scenario's
// assertions against the captured event and envelope.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/faasprobe/faasprobe/internal/runner"
	"github.com/faasprobe/faasprobe/internal/telemetry"
)

// Harness executes scenarios. Each run is strictly sequential: no state
// is shared between invocations beyond the Runner configuration.
type Harness struct {
	runner *runner.Runner
	logger *slog.Logger
}

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Event is the captured error report, nil if none was emitted.
	Event *telemetry.Event `json:"-"`

	// Envelope is the captured performance report, nil if none was emitted.
	Envelope *telemetry.Envelope `json:"-"`

	// Stdout is the child process's complete raw output.
	Stdout string `json:"-"`

	// Raw payload bytes for snapshotting and archiving.
	EventPayload    []byte `json:"-"`
	EnvelopePayload []byte `json:"-"`

	DurationMS int64 `json:"duration_ms"`
}

// New creates a Harness on top of the given runner configuration.
// Passing the zero Config uses the Go toolchain on PATH, os.Stderr for
// tool diagnostics, and the process-wide slog logger, so --verbose
// level changes reach the harness without extra wiring.
func New(cfg runner.Config) *Harness {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Harness{
		runner: runner.New(cfg),
		logger: cfg.Logger,
	}
}

// Run executes a scenario and evaluates its assertions.
//
// An error return means the harness itself failed (build, launch, or
// payload parse failure) — fatal, never retried. Assertion failures are
// not errors; they are reported in Result.Errors with Pass=false.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	h.logger.Info("running scenario", "name", scenario.Name)

	run, err := h.runner.Run(ctx, runner.Program{
		Handler:          scenario.Function,
		Event:            scenario.Event,
		TimeoutWarning:   scenario.SDK.TimeoutWarning,
		TracesSampleRate: scenario.SDK.TracesSampleRate,
		Debug:            scenario.SDK.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{
		Pass:            true,
		Event:           run.Event,
		Envelope:        run.Envelope,
		Stdout:          run.Stdout,
		EventPayload:    run.EventPayload,
		EnvelopePayload: run.EnvelopePayload,
		DurationMS:      run.Duration.Milliseconds(),
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"name", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
