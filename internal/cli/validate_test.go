package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `name: error-return
description: handler error is captured as an unhandled gcp exception
function: |
  func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
    return "", errors.New("something went wrong")
  }
assertions:
  - type: event_level
    level: error
  - type: exception
    value: something went wrong
    mechanism:
      type: gcp
      handled: false
`

func writeScenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestValidateAcceptsValidScenarios(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"error-return.yaml": validYAML})

	out, err := executeCommand("validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateAcceptsTriggerEvent(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"trigger.yaml": `name: trigger
description: trigger event payload is part of the scenario shape
event:
  deadline: "2026-08-25T12:00:00Z"
  attempt: 2
function: |
  func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
    return "", nil
  }
assertions:
  - type: no_event
`,
	})

	out, err := executeCommand("validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestValidateRejectsBadAssertionType(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"bad.yaml": `name: bad
description: uses an assertion type that does not exist
function: |
  func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
    return "", nil
  }
assertions:
  - type: telepathy
`,
	})

	_, err := executeCommand("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateRejectsOutOfRangeSampleRate(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"rate.yaml": `name: rate
description: sample rate above one
function: |
  func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
    return "", nil
  }
sdk:
  traces_sample_rate: 1.5
assertions:
  - type: no_event
`,
	})

	_, err := executeCommand("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateRejectsMissingHandler(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"handler.yaml": `name: handler
description: function snippet lacks the cloudFunction entry point
function: |
  func wrongName(ctx context.Context) {}
assertions:
  - type: no_event
`,
	})

	_, err := executeCommand("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateRejectsMalformedYAML(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"broken.yaml": "name: [unclosed"})

	_, err := executeCommand("validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateMissingDirectory(t *testing.T) {
	_, err := executeCommand("validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := executeCommand("validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileSchema(t *testing.T) {
	_, err := compileSchema()
	assert.NoError(t, err)
}
