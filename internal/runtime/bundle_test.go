package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/errors"
)

// stubCompiler returns canned modules keyed by file base name.
type stubCompiler map[string]*compiler.Output

func (s stubCompiler) Compile(_ context.Context, in compiler.Input) (*compiler.Output, error) {
	out, ok := s[filepath.Base(in.Filename)]
	if !ok {
		return nil, errors.NewParseError("unexpected token", nil).WithLocation(in.Filename, 1, 1)
	}
	return out, nil
}

func writeFile(t *testing.T, p, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
}

func TestBundleInlinesComponents(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "src", "pages", "index.astro")
	writeFile(t, page, "<html></html>")
	writeFile(t, filepath.Join(root, "src", "components", "Nav.astro"), "<nav></nav>")

	c := stubCompiler{
		"index.astro": {
			FileID: "src/pages/index.astro",
			Contents: "import { h, Fragment } from '/_astro_internal/h.js';\n" +
				"import Nav from '../components/Nav.astro';\n" +
				"export const __renderPage = async () => String(await h(Nav, null));\n",
			CSS: "h1.astro-a{color:red}",
		},
		"Nav.astro": {
			FileID:   "src/components/Nav.astro",
			Contents: "export default { isAstroComponent: true, __render: async () => 'nav' };\n",
			CSS:      "nav.astro-b{color:blue}",
		},
	}

	b, err := NewBundler(c, root).Bundle(context.Background(), page)
	require.NoError(t, err)

	assert.Contains(t, b.Code, "HTMLString")
	assert.Contains(t, b.Code, "isAstroComponent")
	assert.NotContains(t, b.Code, "/_astro_internal/")
	assert.Equal(t, []CompiledStyle{
		{FileID: "src/components/Nav.astro", CSS: "nav.astro-b{color:blue}"},
		{FileID: "src/pages/index.astro", CSS: "h1.astro-a{color:red}"},
	}, b.Styles)
}

func TestBundleKeepsPackagesExternal(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "src", "pages", "index.astro")
	writeFile(t, page, "")

	c := stubCompiler{"index.astro": {
		FileID:   "src/pages/index.astro",
		Contents: "import { __react_static } from '/_astro_internal/render/react.js';\nexport const r = __react_static;\n",
	}}

	b, err := NewBundler(c, root).Bundle(context.Background(), page)
	require.NoError(t, err)
	assert.Contains(t, b.Code, `from "react"`)
	assert.Contains(t, b.Code, `from "react-dom/server"`)
	assert.Contains(t, b.Code, "createRenderers")
}

func TestBundleCompileError(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "src", "pages", "broken.astro")
	writeFile(t, page, "")

	_, err := NewBundler(stubCompiler{}, root).Bundle(context.Background(), page)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestBundleSyntaxError(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "src", "pages", "index.astro")
	writeFile(t, page, "")

	c := stubCompiler{"index.astro": {FileID: "src/pages/index.astro", Contents: "export const = ;"}}
	_, err := NewBundler(c, root).Bundle(context.Background(), page)
	require.Error(t, err)
	assert.True(t, errors.IsParseError(err))
}

func TestFrontendFiles(t *testing.T) {
	for _, name := range []string{
		"h.js",
		"client/hydrate.js",
		"render/react.js",
		"render/preact.js",
		"render/vue.js",
		"render/svelte.js",
		"runtime/svelte.js",
	} {
		data, err := os.ReadFile(filepath.Join("frontend", name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, strings.TrimSpace(string(data)))
	}
}
