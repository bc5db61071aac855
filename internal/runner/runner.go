// Package runner builds and executes synthetic cloud functions in
// isolated subprocesses and returns the telemetry they emit.
//
// Each run is fully sequential and blocking: scaffold an ephemeral
// module directory, build the generated program with the Go toolchain,
// execute it as a fresh process, and read its stdout to completion
// before correlating. The only concurrency is the OS process boundary
// between the harness and the function under test; the runner imposes no
// timeout of its own — timeout behavior is the function's own monitored
// concern.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/faasprobe/faasprobe/internal/protocol"
	"github.com/faasprobe/faasprobe/internal/telemetry"
)

// Config holds subprocess configuration overrides.
type Config struct {
	// GoBin is the Go toolchain binary. Defaults to "go" on PATH.
	GoBin string

	// Env is appended to the inherited environment of every subprocess.
	Env []string

	// Stderr receives build/run diagnostics. Defaults to os.Stderr so
	// a failing build prints its tool output to the console.
	Stderr io.Writer

	// Logger for run progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// Runner executes Programs. The zero-value Config is usable.
type Runner struct {
	cfg Config
}

// Result is the tuple produced by one function invocation: the parsed
// envelope and event plus the child's complete raw stdout. Slots stay
// nil when the corresponding tag never appeared.
type Result struct {
	Event    *telemetry.Event
	Envelope *telemetry.Envelope
	Stdout   string

	// Raw payload bytes as they appeared on the wire, for snapshot
	// normalization and archiving.
	EventPayload    []byte
	EnvelopePayload []byte

	Duration time.Duration
}

// New creates a Runner with the given configuration.
func New(cfg Config) *Runner {
	if cfg.GoBin == "" {
		cfg.GoBin = "go"
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg}
}

// Run generates, builds, and executes the program, then correlates its
// output. Build, install, and launch failures are fatal: they are
// environment problems, not behavior under test, and are never retried.
func (r *Runner) Run(ctx context.Context, p Program) (*Result, error) {
	start := time.Now()

	dir, err := os.MkdirTemp("", "faasprobe-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := writeProgram(dir, p); err != nil {
		return nil, fmt.Errorf("write function module: %w", err)
	}
	r.cfg.Logger.Debug("function module written", "dir", dir)

	if err := r.runTool(ctx, dir, r.cfg.GoBin, "mod", "tidy"); err != nil {
		return nil, fmt.Errorf("install function dependencies: %w", err)
	}
	if err := r.runTool(ctx, dir, r.cfg.GoBin, "build", "-o", "function", "."); err != nil {
		return nil, fmt.Errorf("build function: %w", err)
	}
	r.cfg.Logger.Debug("function built", "dir", dir)

	stdout, err := r.execFunction(ctx, dir)
	if err != nil {
		return nil, err
	}

	capture, err := protocol.ScanString(stdout)
	if err != nil {
		return nil, fmt.Errorf("correlate function output: %w", err)
	}

	result := &Result{
		Stdout:          stdout,
		EventPayload:    capture.Event,
		EnvelopePayload: capture.Envelope,
		Duration:        time.Since(start),
	}
	if capture.HasEvent() {
		if result.Event, err = telemetry.ParseEvent(capture.Event); err != nil {
			return nil, err
		}
	}
	if capture.HasEnvelope() {
		if result.Envelope, err = telemetry.ParseEnvelope(capture.Envelope); err != nil {
			return nil, err
		}
	}

	r.cfg.Logger.Info("function run complete",
		"duration", result.Duration,
		"event", capture.HasEvent(),
		"envelope", capture.HasEnvelope(),
	)
	return result, nil
}

// runTool shells out to build/install tooling in the work dir.
func (r *Runner) runTool(ctx context.Context, dir, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOWORK=off", "GOFLAGS=-mod=mod")
	cmd.Env = append(cmd.Env, r.cfg.Env...)
	cmd.Stdout = r.cfg.Stderr
	cmd.Stderr = r.cfg.Stderr

	r.cfg.Logger.Debug("running tool", "bin", bin, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", bin, args, err)
	}
	return nil
}

// execFunction launches the built binary and reads its stdout until the
// process terminates. The full output is available before this returns;
// partial reads are never surfaced.
func (r *Runner) execFunction(ctx context.Context, dir string) (string, error) {
	var out bytes.Buffer

	cmd := exec.CommandContext(ctx, filepath.Join(dir, "function"))
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.Stdout = &out
	cmd.Stderr = r.cfg.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("execute function: %w", err)
	}
	return out.String(), nil
}
