package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// moduleRoot locates the harness module's own source directory so
// generated programs can reference it with a replace directive. Walks up
// from this source file until a go.mod appears.
func moduleRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("cannot determine caller source location")
	}

	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod above %s", filepath.Dir(file))
		}
		dir = parent
	}
}
