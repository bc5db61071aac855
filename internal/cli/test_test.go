package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "c.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "c.yaml"),
	}, files)
}

func TestFindScenarioFilesFilter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"timeout-warning.yaml", "trace-ok.yaml", "error-return.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	files, err := findScenarioFiles(dir, "t*")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "timeout-warning.yaml"),
		filepath.Join(dir, "trace-ok.yaml"),
	}, files)

	_, err = findScenarioFiles(dir, "[bad")
	assert.Error(t, err)
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := executeCommand("test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDirectory(t *testing.T) {
	out, err := executeCommand("test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestRunCommandRejectsInvalidScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: only-a-name\n"), 0o644))

	_, err := executeCommand("run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandMissingFile(t *testing.T) {
	_, err := executeCommand("run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
