package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultExclude = []string{"**/node_modules/**", "**/.*/**"}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func newTestScanner(t *testing.T) (*Scanner, string) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/pages/index.astro":           "<html></html>",
		"src/pages/blog/post.md":          "# post",
		"src/components/Card.astro":       "<div/>",
		"src/components/Counter.jsx":      "export default () => null",
		"src/node_modules/pkg/x.astro":    "<div/>",
		"src/.cache/Stale.astro":          "<div/>",
		"src/components/drafts/Wip.astro": "<div/>",
	})
	src := filepath.Join(root, "src")
	return New(root, src, filepath.Join(src, "pages"), defaultExclude), root
}

func TestScan(t *testing.T) {
	s, _ := newTestScanner(t)

	sources, err := s.Scan(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, src := range sources {
		ids = append(ids, src.FileID)
	}
	assert.Equal(t, []string{
		"src/components/Card.astro",
		"src/components/drafts/Wip.astro",
		"src/pages/blog/post.md",
		"src/pages/index.astro",
	}, ids)
}

func TestScanKinds(t *testing.T) {
	s, _ := newTestScanner(t)

	sources, err := s.Scan(context.Background())
	require.NoError(t, err)

	kinds := make(map[string]Kind)
	for _, src := range sources {
		kinds[src.FileID] = src.Kind
	}
	assert.Equal(t, KindComponent, kinds["src/components/Card.astro"])
	assert.Equal(t, KindPage, kinds["src/pages/index.astro"])
	assert.Equal(t, KindPage, kinds["src/pages/blog/post.md"])
	assert.Equal(t, "page", KindPage.String())
	assert.Equal(t, "component", KindComponent.String())
}

func TestScanCustomExclude(t *testing.T) {
	s, root := newTestScanner(t)
	s.exclude = append(s.exclude, "components/drafts/**")

	sources, err := s.Scan(context.Background())
	require.NoError(t, err)
	for _, src := range sources {
		assert.NotContains(t, src.FileID, "drafts")
	}
	assert.True(t, s.Excluded(filepath.Join(root, "src/components/drafts/Wip.astro"), false))
	assert.False(t, s.Contains(filepath.Join(root, "src/components/drafts/Wip.astro")))
	assert.True(t, s.Contains(filepath.Join(root, "src/components/Card.astro")))
}

func TestScanCancelled(t *testing.T) {
	s, _ := newTestScanner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanFileHash(t *testing.T) {
	s, root := newTestScanner(t)
	p := filepath.Join(root, "src/components/Card.astro")

	first, err := s.ScanFile(p)
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("<div/>")), first.Hash)
	assert.Equal(t, int64(6), first.Size)

	require.NoError(t, os.WriteFile(p, []byte("<span/>"), 0o644))
	second, err := s.ScanFile(p)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)
}

func TestExcludedOutsideSource(t *testing.T) {
	s, root := newTestScanner(t)
	assert.True(t, s.Excluded(filepath.Join(root, "other", "x.astro"), false))
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("a/b.astro"))
	assert.True(t, IsSource("README.MD"))
	assert.False(t, IsSource("Counter.jsx"))
	assert.False(t, IsSource("style.css"))
}
