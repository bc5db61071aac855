package runner

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRunner builds a runner that discards diagnostics, skipping the
// test when no Go toolchain is available.
func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	if testing.Short() {
		t.Skip("runner integration test builds and executes a subprocess")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	return New(Config{
		Stderr: io.Discard,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRunnerExecutesHandlerError(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), Program{
		Handler: `func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
	return "", errors.New("something went wrong")
}`,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Event)
	assert.Equal(t, "error", string(result.Event.Level))
	assert.Nil(t, result.Envelope)
	assert.NotEmpty(t, result.EventPayload)
	assert.NotEmpty(t, result.Stdout)
	assert.Greater(t, result.Duration.Milliseconds(), int64(0))
}

func TestRunnerExecutesCleanHandler(t *testing.T) {
	r := newTestRunner(t)

	result, err := r.Run(context.Background(), Program{
		Handler: `func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
	return "ok", nil
}`,
	})
	require.NoError(t, err)

	assert.Nil(t, result.Event)
	assert.Nil(t, result.Envelope)
}

func TestRunnerRejectsUnbuildableHandler(t *testing.T) {
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), Program{
		Handler: `func cloudFunction(ctx context.Context, event map[string]any) (string, error) {
	this does not compile
}`,
	})
	assert.Error(t, err)
}
