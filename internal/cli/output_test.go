package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "scenario failed")
	assert.Equal(t, "scenario failed", err.Error())
	assert.Equal(t, ExitFailure, GetExitCode(err))

	wrapped := WrapExitError(ExitCommandError, "failed to load scenario", errors.New("no such file"))
	assert.Equal(t, "failed to load scenario: no such file", wrapped.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.EqualError(t, errors.Unwrap(wrapped), "no such file")
}

func TestGetExitCodeUnwrapsChains(t *testing.T) {
	inner := NewExitError(ExitCommandError, "boom")
	outer := fmt.Errorf("context: %w", inner)
	assert.Equal(t, ExitCommandError, GetExitCode(outer))
}

func TestGetExitCodeDefaultsToFailure(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))
}

func TestPrinterResultJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	require.NoError(t, p.Result(map[string]any{"pass": true}))

	var envelope jsonEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	assert.Equal(t, "ok", envelope.Status)
	assert.Nil(t, envelope.Error)
}

func TestPrinterResultIsNoOpInTextMode(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	require.NoError(t, p.Result(map[string]any{"pass": true}))
	assert.Empty(t, buf.String())
}

func TestPrinterFailJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	require.NoError(t, p.Fail(ErrCodeValidation, "invalid YAML", nil))

	var envelope jsonEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &envelope))
	assert.Equal(t, "error", envelope.Status)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, ErrCodeValidation, envelope.Error.Code)
}

func TestPrinterTextLines(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf}

	p.Outcome(passStatus(false), "error-return", "4200ms")
	p.Detail("Assertion failed: %s", "event_level")
	p.Summary("%d passed, %d failed, %d total", 0, 1, 1)

	assert.Equal(t, "FAIL  error-return (4200ms)\n  Assertion failed: event_level\n0 passed, 1 failed, 1 total\n", buf.String())
}

func TestPrinterTextLinesSuppressedInJSONMode(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{JSON: true, Out: &buf}

	p.Outcome(passStatus(true), "trace-ok", "100ms")
	p.Detail("detail")
	p.Summary("summary")

	assert.Empty(t, buf.String())
}

func TestPrinterVerbosef(t *testing.T) {
	var out, diag bytes.Buffer
	p := &Printer{JSON: true, Out: &out, Diag: &diag, Verbose: true}

	p.Verbosef("processed %d files", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "processed 3 files\n", diag.String())

	p.Verbose = false
	diag.Reset()
	p.Verbosef("suppressed")
	assert.Empty(t, diag.String())
}

func TestPassStatus(t *testing.T) {
	assert.Equal(t, "PASS", passStatus(true))
	assert.Equal(t, "FAIL", passStatus(false))
}
