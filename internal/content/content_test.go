package content

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/parse/v2/js"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/script"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("# "+f), 0o644))
	}
}

func firstDecl(t *testing.T, src string) *js.VarDecl {
	t.Helper()
	tree, err := script.Parse(src, "index.astro")
	require.NoError(t, err)
	require.NotEmpty(t, tree.List)
	decl, ok := tree.List[0].(*js.VarDecl)
	require.True(t, ok, "expected a variable declaration")
	return decl
}

func newExtractor(root string) *Extractor {
	return &Extractor{
		ProjectRoot: root,
		PagesDir:    filepath.Join(root, "src", "pages"),
		Warnings:    errors.NewCollector(),
	}
}

func TestRewriteDecl(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "src/pages/post/b.md", "src/pages/post/a.md", "src/pages/post/nested/c.md", "src/pages/post/skip.txt")
	filename := filepath.Join(root, "src", "pages", "index.astro")

	e := newExtractor(root)
	decl := firstDecl(t, "const posts = Astro.fetchContent('./post/*.md');")

	rw, ok, err := e.RewriteDecl(context.Background(), decl, filename, "src/pages/index.astro")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{
		"import * as __fetch_posts_0 from './post/a.md';",
		"import * as __fetch_posts_1 from './post/b.md';",
	}, rw.Imports)
	assert.Equal(t,
		`const posts = [{...__fetch_posts_0.__content, file: "/src/pages/post/a.md", url: "/post/a"}, `+
			`{...__fetch_posts_1.__content, file: "/src/pages/post/b.md", url: "/post/b"}];`,
		rw.Code)
	assert.Equal(t, 0, e.Warnings.Len())
}

func TestRewriteDeclRecursiveAndParent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "src/data/x.md", "src/data/deep/y.md")
	filename := filepath.Join(root, "src", "pages", "index.astro")

	decl := firstDecl(t, `let items = Astro.fetchContent("../data/**/*.md");`)
	rw, ok, err := newExtractor(root).RewriteDecl(context.Background(), decl, filename, "src/pages/index.astro")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{
		"import * as __fetch_items_0 from '../data/deep/y.md';",
		"import * as __fetch_items_1 from '../data/x.md';",
	}, rw.Imports)
	assert.Contains(t, rw.Code, "let items = [")
	assert.NotContains(t, rw.Code, "url:")
}

func TestRewriteDeclAwaitWarns(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "src/pages/post/a.md")
	filename := filepath.Join(root, "src", "pages", "index.astro")

	var buf bytes.Buffer
	e := newExtractor(root)
	e.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Output: &buf})

	decl := firstDecl(t, "const posts = await Astro.fetchContent('./post/*.md');")
	_, ok, err := e.RewriteDecl(context.Background(), decl, filename, "src/pages/index.astro")
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 1, e.Warnings.Len())
	assert.Equal(t, AwaitWarning, e.Warnings.All()[0].Message)
	assert.Contains(t, buf.String(), AwaitWarning)
}

func TestRewriteDeclDynamicGlob(t *testing.T) {
	for _, src := range []string{
		"const posts = Astro.fetchContent(dir + '/*.md');",
		"const posts = Astro.fetchContent(`./${dir}/*.md`);",
	} {
		decl := firstDecl(t, src)
		_, _, err := newExtractor(t.TempDir()).RewriteDecl(context.Background(), decl, "/tmp/index.astro", "index.astro")
		require.Error(t, err, src)
		assert.True(t, errors.HasCode(err, errors.ErrCodeDynamicGlob), src)
	}
}

func TestRewriteDeclIgnoresOtherCalls(t *testing.T) {
	decl := firstDecl(t, "const data = fetch('/api');")
	_, ok, err := newExtractor(t.TempDir()).RewriteDecl(context.Background(), decl, "/tmp/index.astro", "index.astro")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouteFor(t *testing.T) {
	assert.Equal(t, "/", RouteFor("index.md"))
	assert.Equal(t, "/post/a", RouteFor("post/a.md"))
	assert.Equal(t, "/post", RouteFor("post/index.md"))
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "__fetch_posts_3", Identifier("posts", 3))
}
