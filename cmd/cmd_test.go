package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/testutils"
	"github.com/conneroisu/astral/internal/version"
)

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	compileOut = ""
	compileClean = false
	versionFormat = "text"
	versionShort = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version.Get().Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersionShort(t *testing.T) {
	stdout, _, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Short()+"\n", stdout)
}

func TestVersionUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "version", "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestCompileEmptyProject(t *testing.T) {
	root := testutils.CreateTempProject(t, nil)
	_, stderr, err := execute(t, "compile", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, stderr, "No sources found")
}

func TestCompileRejectsUnknownExtension(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"src/notes.txt": "hi"})
	_, _, err := execute(t, "compile", "--root", root, filepath.Join(root, "src", "notes.txt"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoPlugin))
}

func TestCompileReportsFailures(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"src/pages/index.astro": "<h1>hi</h1>"})
	stdout, stderr, err := execute(t, "compile", "--root", root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files failed")
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "src/pages/index.astro")
	assert.Contains(t, stderr, "no template parser configured")
	assert.Contains(t, stderr, "Compiled 0/1 files")
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	viper.Set("logging.level", "loud")
	t.Cleanup(func() { viper.Set("logging.level", "info") })

	_, _, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoadConfigRejectsUnknownPlugin(t *testing.T) {
	viper.Set("compiler.extensions", map[string]string{"mdx": "angular"})
	t.Cleanup(func() { viper.Set("compiler.extensions", map[string]string{}) })

	_, _, err := loadConfig()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Contains(t, err.Error(), "compiler.extensions")
}

func TestOpenWorkspace(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"src/pages/index.astro": "<h1/>"})
	require.NoError(t, rootCmd.PersistentFlags().Set("root", root))
	t.Cleanup(func() { rootCmd.PersistentFlags().Set("root", ".") })

	cfg, logger, err := loadConfig()
	require.NoError(t, err)
	ws, err := openWorkspace(cfg, logger)
	require.NoError(t, err)
	defer ws.Close()

	sources, err := ws.scanner().Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "src/pages/index.astro", sources[0].FileID)
}

func TestFlagNormalization(t *testing.T) {
	assert.Equal(t, pflag.NormalizedName("log-level"), normalizeFlagName(nil, "log_level"))

	root := testutils.CreateTempProject(t, nil)
	_, stderr, err := execute(t, "compile", "--root", root, "--log_format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "No sources found")
}
