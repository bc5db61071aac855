package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test case: a synthetic cloud-function
// handler, the SDK options to initialize it with, and assertions on the
// telemetry it must emit.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Function is the Go source snippet for the handler under test:
	//
	//	func cloudFunction(ctx context.Context, event map[string]any) (string, error) { ... }
	Function string `yaml:"function"`

	// SDK configures the monitoring SDK for this invocation.
	SDK SDKOptions `yaml:"sdk,omitempty"`

	// Event is the trigger event handed to the handler. Optional; the
	// handler receives an empty map when absent.
	Event map[string]any `yaml:"event,omitempty"`

	// Assertions validate the captured event and envelope.
	Assertions []Assertion `yaml:"assertions"`
}

// SDKOptions mirror the knobs the generated preamble passes to the
// monitoring SDK.
type SDKOptions struct {
	TimeoutWarning   bool    `yaml:"timeout_warning,omitempty"`
	TracesSampleRate float64 `yaml:"traces_sample_rate,omitempty"`
	Debug            bool    `yaml:"debug,omitempty"`
}

// Assertion validates one aspect of the captured telemetry.
type Assertion struct {
	// Type selects the assertion:
	// - "event_level": captured event exists with the given level
	// - "exception": event holds exactly one exception matching the
	//   given type/value/mechanism expectations
	// - "envelope": envelope is a transaction with the given trace op;
	//   the transaction name must appear in the request URL
	// - "output_contains": raw stdout contains a substring
	// - "no_event": no error event was captured
	Type string `yaml:"type"`

	// Level is the expected severity (event_level).
	Level string `yaml:"level,omitempty"`

	// ExceptionType / Value / ValueContains match the single exception
	// (exception). Empty fields are not checked; Value is an exact
	// match, ValueContains a substring match.
	ExceptionType string `yaml:"exception_type,omitempty"`
	Value         string `yaml:"value,omitempty"`
	ValueContains string `yaml:"value_contains,omitempty"`

	// Mechanism is the expected mechanism tag (exception).
	Mechanism *MechanismExpectation `yaml:"mechanism,omitempty"`

	// Op is the expected trace operation (envelope).
	Op string `yaml:"op,omitempty"`

	// TransactionPrefix is the expected prefix of the transaction name
	// (envelope). Empty means any non-empty transaction.
	TransactionPrefix string `yaml:"transaction_prefix,omitempty"`

	// Substring is the expected raw-output fragment (output_contains).
	Substring string `yaml:"substring,omitempty"`
}

// MechanismExpectation is an exact-match expectation for an exception's
// mechanism tag.
type MechanismExpectation struct {
	Type    string `yaml:"type"`
	Handled bool   `yaml:"handled"`
}

// Assertion type constants.
const (
	AssertEventLevel     = "event_level"
	AssertException      = "exception"
	AssertEnvelope       = "envelope"
	AssertOutputContains = "output_contains"
	AssertNoEvent        = "no_event"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Function) == "" {
		return fmt.Errorf("function is required")
	}
	if !strings.Contains(s.Function, "func cloudFunction(") {
		return fmt.Errorf("function must define cloudFunction")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.SDK.TracesSampleRate < 0 || s.SDK.TracesSampleRate > 1 {
		return fmt.Errorf("sdk.traces_sample_rate must be in [0, 1]")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventLevel:
		if a.Level == "" {
			return fmt.Errorf("assertions[%d]: level is required for event_level", index)
		}
	case AssertException:
		if a.ExceptionType == "" && a.Value == "" && a.ValueContains == "" && a.Mechanism == nil {
			return fmt.Errorf("assertions[%d]: exception requires at least one expectation", index)
		}
		if a.Value != "" && a.ValueContains != "" {
			return fmt.Errorf("assertions[%d]: value and value_contains are mutually exclusive", index)
		}
		if a.Mechanism != nil && a.Mechanism.Type == "" {
			return fmt.Errorf("assertions[%d]: mechanism.type is required", index)
		}
	case AssertEnvelope:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for envelope", index)
		}
	case AssertOutputContains:
		if a.Substring == "" {
			return fmt.Errorf("assertions[%d]: substring is required for output_contains", index)
		}
	case AssertNoEvent:
		// no fields
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
