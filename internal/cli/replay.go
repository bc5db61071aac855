package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faasprobe/faasprobe/internal/protocol"
	"github.com/faasprobe/faasprobe/internal/store"
	"github.com/faasprobe/faasprobe/internal/telemetry"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	RunID string
}

// ReplayCheck is the outcome of re-correlating one archived run.
type ReplayCheck struct {
	RunID         string   `json:"run_id"`
	Scenario      string   `json:"scenario"`
	Deterministic bool     `json:"deterministic"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay outcome.
type ReplayResult struct {
	Checks        []ReplayCheck `json:"checks"`
	Deterministic int           `json:"deterministic"`
	Divergent     int           `json:"divergent"`
	Total         int           `json:"total"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <runs.db>",
		Short: "Re-correlate archived runs and check determinism",
		Long: `Re-run the output correlator over the raw stdout archived for each run
and compare the normalized telemetry against the payloads captured at
run time. A divergence means correlation or normalization is not
deterministic for that output.

Exit codes:
  0 - All replayed runs matched their archived telemetry
  1 - One or more runs diverged
  2 - Command error (missing database, unknown run ID, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay only this run ID")

	return cmd
}

func runReplay(opts *ReplayOptions, dbPath string, cmd *cobra.Command) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := context.Background()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.GetRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load run", err)
		}
		runs = []store.Run{*run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}
	p := newPrinter(opts.RootOptions, cmd)

	if len(runs) == 0 {
		p.Summary("No archived runs.")
		return p.Result(ReplayResult{Checks: []ReplayCheck{}})
	}

	result := ReplayResult{}
	for _, run := range runs {
		check := replayRun(run)
		result.Checks = append(result.Checks, check)
		result.Total++
		if check.Deterministic {
			result.Deterministic++
		} else {
			result.Divergent++
		}
	}

	for _, c := range result.Checks {
		status := "OK"
		if !c.Deterministic {
			status = "DIVERGED"
		}
		p.Outcome(status, c.RunID, c.Scenario)
		for _, msg := range c.Mismatches {
			p.Detail("%s", msg)
		}
	}
	p.Summary("\n%d ok, %d diverged, %d total", result.Deterministic, result.Divergent, result.Total)
	if err := p.Result(result); err != nil {
		return err
	}

	if result.Divergent > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs diverged on replay", result.Divergent, result.Total))
	}
	return nil
}

// replayRun re-correlates one archived run's raw output and compares the
// normalized captures with the payloads stored at run time.
func replayRun(run store.Run) ReplayCheck {
	check := ReplayCheck{RunID: run.ID, Scenario: run.Scenario, Deterministic: true}

	capture, err := protocol.ScanString(run.RawOutput)
	if err != nil {
		check.Deterministic = false
		check.Mismatches = append(check.Mismatches, fmt.Sprintf("correlation failed: %v", err))
		return check
	}

	if msg := compareNormalized("event", run.EventJSON, capture.Event); msg != "" {
		check.Deterministic = false
		check.Mismatches = append(check.Mismatches, msg)
	}
	if msg := compareNormalized("envelope", run.EnvelopeJSON, capture.Envelope); msg != "" {
		check.Deterministic = false
		check.Mismatches = append(check.Mismatches, msg)
	}
	return check
}

// compareNormalized compares an archived payload and a replayed payload
// after volatile-field stripping and canonical re-encoding.
func compareNormalized(kind string, archived, replayed []byte) string {
	if archived == nil && replayed == nil {
		return ""
	}
	if archived == nil {
		return fmt.Sprintf("%s: replay produced a payload the archive does not have", kind)
	}
	if replayed == nil {
		return fmt.Sprintf("%s: archived payload missing from replayed output", kind)
	}

	want, err := telemetry.NormalizeJSON(archived)
	if err != nil {
		return fmt.Sprintf("%s: normalize archived payload: %v", kind, err)
	}
	got, err := telemetry.NormalizeJSON(replayed)
	if err != nil {
		return fmt.Sprintf("%s: normalize replayed payload: %v", kind, err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Sprintf("%s: normalized payloads differ", kind)
	}
	return ""
}
