package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/faasprobe/faasprobe/internal/harness"
	"github.com/faasprobe/faasprobe/internal/runner"
	"github.com/faasprobe/faasprobe/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter   string // scenario filter (glob pattern on file base name)
	Database string
	GoBin    string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string   `json:"name"`
	Pass       bool     `json:"pass"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run all scenarios in a directory",
		Long: `Run every scenario YAML file in a directory and report a summary.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, build failures, etc.)

Examples:
  faasprobe test ./scenarios
  faasprobe test ./scenarios --filter "timeout-*"
  faasprobe test ./scenarios --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive each run in this SQLite database")
	cmd.Flags().StringVar(&opts.GoBin, "go-bin", "", "Go toolchain binary (defaults to go on PATH)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	p := newPrinter(opts.RootOptions, cmd)

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(scenarioFiles) == 0 {
		p.Summary("No scenarios found.")
		return p.Result(TestResult{Scenarios: []ScenarioResult{}})
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	h := harness.New(runner.Config{
		GoBin:  opts.GoBin,
		Stderr: cmd.ErrOrStderr(),
	})

	// Scenarios run strictly one after another; each gets a fresh work
	// dir and subprocess, so nothing is shared between them.
	result := TestResult{}
	for _, file := range scenarioFiles {
		scenarioResult, err := runOneScenario(h, st, file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario file %s", file), err)
		}

		result.Scenarios = append(result.Scenarios, *scenarioResult)
		result.Total++
		if scenarioResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	for _, s := range result.Scenarios {
		p.Outcome(passStatus(s.Pass), s.Name, fmt.Sprintf("%dms", s.DurationMS))
		for _, msg := range s.Errors {
			p.Detail("%s", msg)
		}
	}
	p.Summary("\n%d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	if err := p.Result(result); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func runOneScenario(h *harness.Harness, st *store.Store, file string) (*ScenarioResult, error) {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	if st != nil {
		run := store.Run{
			ID:           store.NewRunID(),
			Scenario:     scenario.Name,
			StartedAt:    startedAt,
			DurationMS:   result.DurationMS,
			Pass:         result.Pass,
			RawOutput:    result.Stdout,
			EventJSON:    result.EventPayload,
			EnvelopeJSON: result.EnvelopePayload,
		}
		if err := st.SaveRun(context.Background(), run); err != nil {
			return nil, err
		}
	}

	return &ScenarioResult{
		Name:       scenario.Name,
		Pass:       result.Pass,
		Errors:     result.Errors,
		DurationMS: result.DurationMS,
	}, nil
}

// findScenarioFiles lists scenario YAML files, optionally filtered by a
// glob pattern on the file base name.
func findScenarioFiles(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		if filter != "" {
			match, err := filepath.Match(filter, strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml"))
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !match {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}
