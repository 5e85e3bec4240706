// Package testenv provides environment isolation helpers for tests.
// This package intentionally has no dependencies on other internal packages
// to avoid import cycles.
package testenv

import (
	"fmt"
	"os"
	"testing"
)

// DataDirEnv is the variable config.DataDir consults before falling
// back to ~/.lessonbot.
const DataDirEnv = "LESSONBOT_DATA_DIR"

// SetDataDir points LESSONBOT_DATA_DIR at a temp directory so tests never
// touch ~/.lessonbot. Returns the temp directory path. Cleanup is
// automatic via t.Setenv.
func SetDataDir(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	t.Setenv(DataDirEnv, tmpDir)
	return tmpDir
}

// RunIsolatedMain runs a package's tests with LESSONBOT_DATA_DIR set to a
// throwaway directory, then fails the run if anything leaked into the
// real data directory. Intended for TestMain.
func RunIsolatedMain(m *testing.M) int {
	barrier := NewProdLogBarrier(DefaultProdDataDir())

	tmpDir, err := os.MkdirTemp("", "lessonbot-test-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "testenv: create temp data dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(tmpDir)

	orig, hadOrig := os.LookupEnv(DataDirEnv)
	os.Setenv(DataDirEnv, tmpDir)
	defer func() {
		if hadOrig {
			os.Setenv(DataDirEnv, orig)
		} else {
			os.Unsetenv(DataDirEnv)
		}
	}()

	code := m.Run()

	if msg := barrier.Check(); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
		if code == 0 {
			code = 1
		}
	}
	return code
}
