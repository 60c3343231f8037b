package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/scanner"
	"github.com/conneroisu/astral/internal/testutils"
)

func writeSources(t *testing.T, files map[string]string) (string, []scanner.Source) {
	t.Helper()
	root := t.TempDir()
	testutils.WriteFiles(t, root, files)
	var sources []scanner.Source
	for id := range files {
		sources = append(sources, scanner.Source{Path: filepath.Join(root, filepath.FromSlash(id)), FileID: id})
	}
	return root, sources
}

func TestPipelineCompilesAllAndKeepsFailures(t *testing.T) {
	_, sources := writeSources(t, map[string]string{
		"components/Nav.astro": "<nav/>",
		"pages/index.astro":    "<h1/>",
		"pages/broken.astro":   "<",
	})
	sources = append(sources, scanner.Source{Path: "/does/not/exist.astro", FileID: "missing.astro"})

	inner := newCountingCompiler()
	inner.fail["pages/broken.astro"] = errors.NewParseError("unexpected end of input", nil)

	res, err := NewPipeline(inner, 2, nil).Compile(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, res.Files, 4)

	for i, f := range res.Files {
		assert.Equal(t, sources[i].FileID, f.Source.FileID, "results keep source order")
	}
	assert.Equal(t, 4, res.Metrics.Total)
	assert.Equal(t, 2, res.Metrics.Succeeded)
	assert.Equal(t, 2, res.Metrics.Failed)

	require.Error(t, res.Err())
	byID := make(map[string]error)
	for _, f := range res.Files {
		byID[f.Source.FileID] = f.Err
	}
	assert.True(t, errors.IsParseError(byID["pages/broken.astro"]))
	assert.True(t, errors.HasCode(byID["missing.astro"], errors.ErrCodeFileNotFound))
	assert.NoError(t, byID["pages/index.astro"])
	assert.Zero(t, inner.count("missing.astro"))
}

func TestPipelineCancelled(t *testing.T) {
	_, sources := writeSources(t, map[string]string{"a.astro": "<a/>"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(newCountingCompiler(), 1, nil).Compile(ctx, sources)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteModules(t *testing.T) {
	res := &Result{Files: []FileResult{
		{Source: scanner.Source{FileID: "pages/index.astro"}, Output: &compiler.Output{Contents: "js", CSS: "css"}},
		{Source: scanner.Source{FileID: "components/Nav.astro"}, Output: &compiler.Output{Contents: "nav"}},
		{Source: scanner.Source{FileID: "pages/broken.astro"}, Err: assert.AnError},
	}}
	dir := t.TempDir()
	require.NoError(t, WriteModules(dir, res))

	js, err := os.ReadFile(filepath.Join(dir, "pages", "index.astro.js"))
	require.NoError(t, err)
	assert.Equal(t, "js", string(js))
	css, err := os.ReadFile(filepath.Join(dir, "pages", "index.astro.css"))
	require.NoError(t, err)
	assert.Equal(t, "css", string(css))

	assert.FileExists(t, filepath.Join(dir, "components", "Nav.astro.js"))
	assert.NoFileExists(t, filepath.Join(dir, "components", "Nav.astro.css"))
	assert.NoFileExists(t, filepath.Join(dir, "pages", "broken.astro.js"))
}
