package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to path, creating parent directories.
// It fails the test immediately on error.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755), "Failed to create parent dir")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "Failed to write %s", path)
}

// SetupWorkspace creates a temporary directory holding files, keyed by
// slash-separated relative path. It returns the absolute path of the dir.
func SetupWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	for name, content := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), content)
	}
	return dir
}
