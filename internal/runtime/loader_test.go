package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/astral/internal/errors"
)

func emptyData(context.Context, Params) (any, error) { return []any{}, nil }

func staticPermalink(u string) PermalinkFunc {
	return func(context.Context, Params) (string, error) { return u, nil }
}

func sliceData(v []any) DataFunc {
	return func(context.Context, Params) (any, error) { return v, nil }
}

type fakeModule struct {
	collection func() (*Collection, error)
	render     func(in RenderInput) (string, error)
	sheets     []string

	mu     sync.Mutex
	inputs []RenderInput
	closed int
}

func (m *fakeModule) CreateCollection(context.Context) (*Collection, error) {
	if m.collection == nil {
		return nil, nil
	}
	return m.collection()
}

func (m *fakeModule) RenderPage(_ context.Context, in RenderInput) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()
	if m.render == nil {
		return "<html><head></head><body>page</body></html>", nil
	}
	return m.render(in)
}

func (m *fakeModule) Stylesheets() []string { return m.sheets }
func (m *fakeModule) CSS() []string         { return []string{"h1{color:red}"} }

func (m *fakeModule) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

func (m *fakeModule) lastInput(t *testing.T) RenderInput {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.inputs)
	return m.inputs[len(m.inputs)-1]
}

// fakeModules serves modules keyed by path relative to the pages
// directory.
type fakeModules struct {
	pages   string
	modules map[string]*fakeModule
}

func (f *fakeModules) Load(_ context.Context, file string) (Module, error) {
	rel, err := filepath.Rel(f.pages, file)
	if err != nil {
		return nil, err
	}
	m, ok := f.modules[filepath.ToSlash(rel)]
	if !ok {
		return nil, fmt.Errorf("no fake module for %s", rel)
	}
	return m, nil
}

type fakeAssets map[string]Asset

func (f fakeAssets) LoadAsset(_ context.Context, p string) (Asset, bool, error) {
	a, ok := f[p]
	return a, ok, nil
}

func newTestLoader(t *testing.T, cfg Config, modules map[string]*fakeModule, assets AssetLoader) *Loader {
	t.Helper()
	r, _ := newTestRouter(t)
	cfg.PagesDir, cfg.PublicDir = r.PagesDir, r.PublicDir
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	l, err := NewLoader(cfg, &fakeModules{pages: r.PagesDir, modules: modules}, assets, nil)
	require.NoError(t, err)
	return l
}

func TestLoadPage(t *testing.T) {
	index := &fakeModule{sheets: []string{"/_astro/src/pages/index.astro.css"}}
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"index.astro": index}, nil)

	res := l.Load(context.Background(), "/?utm=1")
	require.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
	assert.Contains(t, string(res.Contents),
		`<link rel="stylesheet" type="text/css" href="/_astro/src/pages/index.astro.css"></head>`)

	in := index.lastInput(t)
	assert.Equal(t, "http://localhost:3000/", in.Request.URL.String())
	assert.Equal(t, "http://localhost:3000/", in.Request.CanonicalURL.String())
	assert.Nil(t, in.Collection)
	assert.Equal(t, []string{"h1{color:red}"}, in.CSS)
	assert.Equal(t, 1, index.closed)
}

func TestLoadErrorPageKeepsQuery(t *testing.T) {
	page := &fakeModule{}
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"500.astro": page}, nil)

	res := l.Load(context.Background(), "/500?code=parse-error")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "code=parse-error", page.lastInput(t).Request.URL.RawQuery)
}

func TestLoadCanonicalURLWithSite(t *testing.T) {
	about := &fakeModule{}
	l := newTestLoader(t, Config{Site: "https://example.com/docs"}, map[string]*fakeModule{"about.md": about}, nil)

	res := l.Load(context.Background(), "/about")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "https://example.com/docs/about/", about.lastInput(t).Request.CanonicalURL.String())
}

func TestNewLoaderRejectsBadSite(t *testing.T) {
	_, err := NewLoader(Config{Site: "ftp://example.com"}, &fakeModules{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestLoadRedirectAndStatic(t *testing.T) {
	l := newTestLoader(t, Config{}, nil, nil)

	res := l.Load(context.Background(), "/blog")
	assert.Equal(t, http.StatusMovedPermanently, res.StatusCode)
	assert.Equal(t, "/blog/", res.Location)

	res = l.Load(context.Background(), "/robots.txt")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", res.ContentType)
	assert.Equal(t, "---\n---\n", string(res.Contents))
}

func TestLoadNotFoundAndAssets(t *testing.T) {
	assets := fakeAssets{"/_astro/components/Counter.js": {ContentType: contentTypeJS, Contents: []byte("export {}")}}
	l := newTestLoader(t, Config{}, nil, assets)

	res := l.Load(context.Background(), "/_astro/components/Counter.js")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, contentTypeJS, res.ContentType)

	res = l.Load(context.Background(), "/nowhere.css")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = l.Load(context.Background(), "/a%00b")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func postsModule(pageSize int, data []any) *fakeModule {
	return &fakeModule{
		collection: func() (*Collection, error) {
			return &Collection{Keys: []string{"data", "pageSize"}, Data: sliceData(data), PageSize: pageSize}, nil
		},
	}
}

func TestLoadCollectionPages(t *testing.T) {
	posts := postsModule(25, items(57))
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": posts}, nil)
	ctx := context.Background()

	res := l.Load(ctx, "/posts/1")
	require.Equal(t, http.StatusOK, res.StatusCode, res.Err)
	st := posts.lastInput(t).Collection
	require.NotNil(t, st)
	assert.Equal(t, 0, st.Start)
	assert.Equal(t, 24, st.End)
	assert.Equal(t, 3, st.Page.Last)
	assert.Equal(t, "/posts/2", st.URL.Next)
	assert.Empty(t, st.URL.Prev)
	assert.Equal(t, []string{"/posts/1", "/posts/2", "/posts/3"}, res.Collection.AdditionalURLs)

	res = l.Load(ctx, "/posts/3")
	require.Equal(t, http.StatusOK, res.StatusCode)
	st = posts.lastInput(t).Collection
	assert.Equal(t, 50, st.Start)
	assert.Equal(t, 56, st.End)
	assert.Len(t, st.Data, 7)
	assert.Empty(t, st.URL.Next)
	assert.Equal(t, "/posts/2", st.URL.Prev)

	res = l.Load(ctx, "/posts/2")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "/posts", posts.lastInput(t).Collection.URL.Prev)

	res = l.Load(ctx, "/posts/4")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NotNil(t, res.Collection)
	assert.Equal(t, []string{"/posts/1", "/posts/2", "/posts/3"}, res.Collection.AdditionalURLs)
}

func TestLoadCollectionRedirectsToFirstPage(t *testing.T) {
	posts := postsModule(10, items(3))
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": posts}, nil)

	res := l.Load(context.Background(), "/posts")
	assert.Equal(t, http.StatusMovedPermanently, res.StatusCode)
	assert.Equal(t, "/posts/1", res.Location)
	assert.NotNil(t, res.Collection)
	assert.Empty(t, posts.inputs)
}

func TestLoadCollectionZeroPageSize(t *testing.T) {
	posts := postsModule(0, items(30))
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": posts}, nil)

	res := l.Load(context.Background(), "/posts")
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := posts.lastInput(t).Collection
	assert.Len(t, st.Data, 30)
	assert.Equal(t, DefaultPageSize, st.Page.Size)
}

func TestLoadCollectionRoutes(t *testing.T) {
	var gotParams Params
	tag := &fakeModule{
		collection: func() (*Collection, error) {
			return &Collection{
				Keys:      []string{"data", "routes", "permalink", "rss"},
				HasRoutes: true,
				Routes:    []Params{{"tag": "go"}, {"tag": "js"}},
				Permalink: func(_ context.Context, p Params) (string, error) {
					return "/tag/" + p["tag"].(string), nil
				},
				Data: func(_ context.Context, p Params) (any, error) {
					gotParams = p
					return map[string]any{"title": "one post"}, nil
				},
				RSS: map[string]any{"title": "Tags"},
				RSSItems: func(_ context.Context, data []any) ([]RSSItem, error) {
					return []RSSItem{{Title: data[0].(map[string]any)["title"].(string)}}, nil
				},
			}, nil
		},
	}
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"tag/$tag.astro": tag}, nil)

	res := l.Load(context.Background(), "/tag/js")
	require.Equal(t, http.StatusOK, res.StatusCode, res.Err)
	assert.Equal(t, Params{"tag": "js"}, gotParams)

	st := tag.lastInput(t).Collection
	assert.Equal(t, Params{"tag": "js"}, st.Params)
	assert.Equal(t, []any{map[string]any{"title": "one post"}}, st.Data)
	assert.Equal(t, []string{"/tag/go", "/tag/js"}, res.Collection.AdditionalURLs)
	require.NotNil(t, res.Collection.RSS)
	assert.Equal(t, "Tags", res.Collection.RSS.Options["title"])
	assert.Len(t, res.Collection.RSS.Data, 1)
	require.NotNil(t, res.Collection.RSS.Items)
	items, err := res.Collection.RSS.Items(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RSSItem{{Title: "one post"}}, items)

	res = l.Load(context.Background(), "/tag/go/1")
	require.Equal(t, http.StatusOK, res.StatusCode, res.Err)
	assert.Equal(t, Params{"tag": "go"}, gotParams)
	assert.Equal(t, []string{"/tag/go", "/tag/go/1", "/tag/js", "/tag/js/1"}, res.Collection.AdditionalURLs)
}

func TestLoadCollectionErrors(t *testing.T) {
	dataCalled := false
	tests := []struct {
		name    string
		c       *Collection
		wantErr string
	}{
		{
			name: "routes without permalink",
			c: &Collection{
				Keys:      []string{"data", "routes"},
				HasRoutes: true,
				Data: func(context.Context, Params) (any, error) {
					dataCalled = true
					return []any{1}, nil
				},
			},
			wantErr: "`routes` requires `permalink`",
		},
		{
			name:    "unknown key",
			c:       &Collection{Keys: []string{"data", "foo"}, Data: emptyData},
			wantErr: `unknown option: "foo"`,
		},
		{
			name: "nil data",
			c: &Collection{Keys: []string{"data"}, Data: func(context.Context, Params) (any, error) {
				return nil, nil
			}},
			wantErr: "returned nothing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.c
			mod := &fakeModule{collection: func() (*Collection, error) { return c, nil }}
			l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": mod}, nil)

			res := l.Load(context.Background(), "/posts")
			assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
			assert.Equal(t, errors.ErrorTypeUnknown, res.ErrorType)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.wantErr)
		})
	}
	assert.False(t, dataCalled)
}

func TestLoadCollectionEmptyData(t *testing.T) {
	posts := postsModule(0, []any{})
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": posts}, nil)

	res := l.Load(context.Background(), "/posts")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.NotNil(t, res.Collection)
}

func TestLoadErrorTypes(t *testing.T) {
	tests := []struct {
		name   string
		render func(RenderInput) (string, error)
		want   errors.ErrorType
	}{
		{
			name: "parse error",
			render: func(RenderInput) (string, error) {
				return "", errors.NewParseError("Unexpected token", nil).WithLocation("src/pages/index.astro", 2, 4)
			},
			want: errors.ErrorTypeParse,
		},
		{
			name: "script syntax error",
			render: func(RenderInput) (string, error) {
				return "", (&ScriptError{Name: "SyntaxError", Message: "bad"}).asError()
			},
			want: errors.ErrorTypeParse,
		},
		{
			name: "plain error",
			render: func(RenderInput) (string, error) {
				return "", stderrors.New("boom")
			},
			want: errors.ErrorTypeUnknown,
		},
		{
			name: "panic",
			render: func(RenderInput) (string, error) {
				panic("kaboom")
			},
			want: errors.ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := &fakeModule{render: tt.render}
			l := newTestLoader(t, Config{}, map[string]*fakeModule{"index.astro": index}, nil)

			res := l.Load(context.Background(), "/")
			assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
			assert.Equal(t, tt.want, res.ErrorType)
			assert.Error(t, res.Err)
		})
	}
}

type failingModules struct{ err error }

func (f failingModules) Load(context.Context, string) (Module, error) {
	return nil, f.err
}

func TestLoadCompileFailuresAreParseErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorType
	}{
		{"unknown component", errors.ErrUnknownComponent("Missing", "src/pages/index.astro"), errors.ErrorTypeParse},
		{"unsupported style", errors.ErrUnsupportedStyle("less", "src/pages/index.astro"), errors.ErrorTypeParse},
		{"dynamic glob", errors.ErrDynamicGlob("src/pages/index.astro"), errors.ErrorTypeParse},
		{"wrapped", fmt.Errorf("bundling: %w", errors.ErrNoPlugin(".elm", "src/pages/index.astro")), errors.ErrorTypeParse},
		{"io failure", stderrors.New("disk gone"), errors.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t)
			l, err := NewLoader(Config{PagesDir: r.PagesDir, PublicDir: r.PublicDir, Port: 3000},
				failingModules{err: tt.err}, nil, nil)
			require.NoError(t, err)

			res := l.Load(context.Background(), "/")
			assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
			assert.Equal(t, tt.want, res.ErrorType)
			assert.ErrorIs(t, res.Err, tt.err)
		})
	}
}

func TestScriptErrorTagging(t *testing.T) {
	assert.True(t, errors.IsParseError((&ScriptError{Name: "Error", Code: "parse-error"}).asError()))
	assert.True(t, errors.IsParseError((&ScriptError{Name: "SyntaxError"}).asError()))
	assert.False(t, errors.IsParseError((&ScriptError{Name: "TypeError"}).asError()))
	assert.Equal(t, "TypeError: x is undefined", (&ScriptError{Name: "TypeError", Message: "x is undefined"}).Error())
}

func TestLoaderConcurrent(t *testing.T) {
	posts := postsModule(5, items(20))
	l := newTestLoader(t, Config{}, map[string]*fakeModule{"$posts.astro": posts}, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			res := l.Load(context.Background(), fmt.Sprintf("/posts/%d", page))
			assert.Equal(t, http.StatusOK, res.StatusCode)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, posts.closed)
}
