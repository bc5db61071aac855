package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It includes
// expected/actual context to make the failure legible without re-running
// the scenario.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against a result and
// returns the failure messages. An empty slice means every assertion
// held.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertEventLevel:
			err = assertEventLevel(result, assertion)
		case AssertException:
			err = assertException(result, assertion)
		case AssertEnvelope:
			err = assertEnvelope(result, assertion)
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertNoEvent:
			err = assertNoEvent(result)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertEventLevel checks that an event was captured with the expected
// severity.
func assertEventLevel(result *Result, assertion Assertion) error {
	if result.Event == nil {
		return &AssertionError{
			Type:     AssertEventLevel,
			Expected: fmt.Sprintf("event with level %q", assertion.Level),
			Actual:   "no event captured",
		}
	}
	if string(result.Event.Level) != assertion.Level {
		return &AssertionError{
			Type:     AssertEventLevel,
			Expected: fmt.Sprintf("level %q", assertion.Level),
			Actual:   fmt.Sprintf("level %q", result.Event.Level),
		}
	}
	return nil
}

// assertException checks that the captured event holds exactly one
// exception matching the expectations. Error scenarios always produce a
// single exception description.
func assertException(result *Result, assertion Assertion) error {
	if result.Event == nil {
		return &AssertionError{
			Type:     AssertException,
			Expected: "event with one exception",
			Actual:   "no event captured",
		}
	}
	if len(result.Event.Exception) != 1 {
		return &AssertionError{
			Type:     AssertException,
			Expected: "exactly one exception",
			Actual:   fmt.Sprintf("%d exceptions", len(result.Event.Exception)),
		}
	}

	exc := result.Event.Exception[0]
	if assertion.ExceptionType != "" && exc.Type != assertion.ExceptionType {
		return &AssertionError{
			Type:     AssertException,
			Expected: fmt.Sprintf("exception type %q", assertion.ExceptionType),
			Actual:   fmt.Sprintf("exception type %q", exc.Type),
		}
	}
	if assertion.Value != "" && exc.Value != assertion.Value {
		return &AssertionError{
			Type:     AssertException,
			Expected: fmt.Sprintf("exception value %q", assertion.Value),
			Actual:   fmt.Sprintf("exception value %q", exc.Value),
		}
	}
	if assertion.ValueContains != "" && !strings.Contains(exc.Value, assertion.ValueContains) {
		return &AssertionError{
			Type:     AssertException,
			Expected: fmt.Sprintf("exception value containing %q", assertion.ValueContains),
			Actual:   fmt.Sprintf("exception value %q", exc.Value),
		}
	}

	if assertion.Mechanism != nil {
		if exc.Mechanism == nil {
			return &AssertionError{
				Type:     AssertException,
				Expected: fmt.Sprintf("mechanism {type: %s, handled: %t}", assertion.Mechanism.Type, assertion.Mechanism.Handled),
				Actual:   "no mechanism tag",
			}
		}
		handled := exc.Mechanism.Handled != nil && *exc.Mechanism.Handled
		if exc.Mechanism.Type != assertion.Mechanism.Type || handled != assertion.Mechanism.Handled {
			return &AssertionError{
				Type:     AssertException,
				Expected: fmt.Sprintf("mechanism {type: %s, handled: %t}", assertion.Mechanism.Type, assertion.Mechanism.Handled),
				Actual:   fmt.Sprintf("mechanism {type: %s, handled: %t}", exc.Mechanism.Type, handled),
			}
		}
	}
	return nil
}

// assertEnvelope checks the performance report: type discriminator,
// trace operation, transaction name, and that the transaction appears in
// the request URL.
func assertEnvelope(result *Result, assertion Assertion) error {
	env := result.Envelope
	if env == nil {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: fmt.Sprintf("envelope with op %q", assertion.Op),
			Actual:   "no envelope captured",
		}
	}
	if env.Type != "transaction" {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: `type "transaction"`,
			Actual:   fmt.Sprintf("type %q", env.Type),
		}
	}
	if env.TraceOp() != assertion.Op {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: fmt.Sprintf("trace op %q", assertion.Op),
			Actual:   fmt.Sprintf("trace op %q", env.TraceOp()),
		}
	}
	if env.Transaction == "" {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: "non-empty transaction name",
			Actual:   "empty transaction name",
		}
	}
	if assertion.TransactionPrefix != "" && !strings.HasPrefix(env.Transaction, assertion.TransactionPrefix) {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: fmt.Sprintf("transaction starting with %q", assertion.TransactionPrefix),
			Actual:   fmt.Sprintf("transaction %q", env.Transaction),
		}
	}
	if !strings.HasPrefix(env.URL(), "https://") {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: "https request URL",
			Actual:   fmt.Sprintf("request URL %q", env.URL()),
		}
	}
	if !strings.Contains(env.URL(), env.Transaction) {
		return &AssertionError{
			Type:     AssertEnvelope,
			Expected: fmt.Sprintf("request URL containing transaction %q", env.Transaction),
			Actual:   fmt.Sprintf("request URL %q", env.URL()),
		}
	}
	return nil
}

// assertOutputContains checks the raw child output for a substring.
func assertOutputContains(result *Result, assertion Assertion) error {
	if !strings.Contains(result.Stdout, assertion.Substring) {
		return &AssertionError{
			Type:     AssertOutputContains,
			Expected: fmt.Sprintf("output containing %q", assertion.Substring),
			Actual:   fmt.Sprintf("%d bytes of output without it", len(result.Stdout)),
		}
	}
	return nil
}

// assertNoEvent checks that the run produced no error event.
func assertNoEvent(result *Result) error {
	if result.Event != nil {
		return &AssertionError{
			Type:     AssertNoEvent,
			Expected: "no error event",
			Actual:   fmt.Sprintf("event with level %q", result.Event.Level),
		}
	}
	return nil
}
