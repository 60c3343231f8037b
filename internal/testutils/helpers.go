// Package testutils provides project fixtures for tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/config"
)

// CreateTempProject creates a project with the standard src/pages and
// public directories and writes files, keyed by slash separated path
// relative to the project root.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for _, dir := range []string{"src/pages", "public"} {
		err := os.MkdirAll(filepath.Join(tempDir, filepath.FromSlash(dir)), 0o755)
		require.NoError(t, err)
	}
	WriteFiles(t, tempDir, files)
	return tempDir
}

// WriteFiles writes files below root, creating parent directories.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

// CreateTestConfig returns the default configuration rooted at projectDir.
func CreateTestConfig(t *testing.T, projectDir string) *config.Config {
	t.Helper()
	v := viper.New()
	v.Set("project.root", projectDir)
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}

// WaitForFileChange waits for a file to be modified after originalModTime.
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
