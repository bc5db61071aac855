package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/faasprobe/faasprobe/internal/telemetry"
)

// Snapshot is the normalized, canonical form of one run's captures.
// Volatile fields (ids, timestamps, environment metadata) are stripped
// so re-running a scenario in the same environment yields byte-identical
// snapshots.
type Snapshot struct {
	Scenario string
	Event    map[string]any
	Envelope map[string]any
}

// BuildSnapshot normalizes a result's raw payloads into a Snapshot.
func BuildSnapshot(scenarioName string, result *Result) (*Snapshot, error) {
	snapshot := &Snapshot{Scenario: scenarioName}

	if result.EventPayload != nil {
		m, err := decodeNormalized(result.EventPayload)
		if err != nil {
			return nil, fmt.Errorf("normalize event: %w", err)
		}
		snapshot.Event = m
	}
	if result.EnvelopePayload != nil {
		m, err := decodeNormalized(result.EnvelopePayload)
		if err != nil {
			return nil, fmt.Errorf("normalize envelope: %w", err)
		}
		snapshot.Envelope = m
	}
	return snapshot, nil
}

// MarshalCanonical serializes the snapshot deterministically.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	m := map[string]any{"scenario": s.Scenario}
	if s.Event != nil {
		m["event"] = s.Event
	}
	if s.Envelope != nil {
		m["envelope"] = s.Envelope
	}
	return telemetry.MarshalCanonical(m)
}

// AssertGolden compares a result's normalized snapshot against a golden
// file in testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := BuildSnapshot(name, result)
	if err != nil {
		return err
	}
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

func decodeNormalized(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return telemetry.Normalize(m), nil
}
