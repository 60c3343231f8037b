package runtime

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/validation"
)

// Config locates the project a Loader serves.
type Config struct {
	PagesDir  string
	PublicDir string
	// Site is the public origin, optionally with a base path. When empty
	// the origin is http://localhost:<Port>.
	Site string
	Port int
}

// LoadResult is the response to one request path.
type LoadResult struct {
	StatusCode  int
	ContentType string
	Contents    []byte
	// Location is set for redirects.
	Location string
	// ErrorType tags 500 responses: parse-error or unknown.
	ErrorType errors.ErrorType
	Err       error
	// Collection is set for collection pages, including their redirects
	// and 404s.
	Collection *CollectionInfo
}

// Loader answers request paths. It holds no per-request state and is safe
// for concurrent use.
type Loader struct {
	router  Router
	modules ModuleLoader
	assets  AssetLoader
	origin  *url.URL
	logger  logging.Logger
}

// NewLoader creates a loader. assets may be nil.
func NewLoader(cfg Config, modules ModuleLoader, assets AssetLoader, logger logging.Logger) (*Loader, error) {
	origin := fmt.Sprintf("http://localhost:%d", cfg.Port)
	if cfg.Site != "" {
		if err := validation.ValidateSite(cfg.Site); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).WithContext("site", cfg.Site)
		}
		origin = cfg.Site
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		router:  Router{PagesDir: cfg.PagesDir, PublicDir: cfg.PublicDir},
		modules: modules,
		assets:  assets,
		origin:  u,
		logger:  logger.WithComponent("runtime"),
	}, nil
}

// Router returns the page router.
func (l *Loader) Router() *Router {
	return &l.router
}

// Load answers rawPath, a request URI path with optional query. A panic
// while serving is reported as an unknown error.
func (l *Loader) Load(ctx context.Context, rawPath string) (res LoadResult) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewInternalError(errors.ErrCodeInternalError, fmt.Sprintf("panic: %v", r), nil)
			l.logger.Error(ctx, err, "Recovered while serving", "path", rawPath)
			res = errorResult(err)
		}
	}()

	if rawPath == "" {
		rawPath = "/"
	}
	full, err := l.origin.Parse(rawPath)
	if err != nil {
		return LoadResult{StatusCode: http.StatusNotFound, Err: err}
	}
	reqPath := full.Path
	if reqPath == "" {
		reqPath = "/"
	}
	if err := validation.ValidateRequestPath(reqPath); err != nil {
		return LoadResult{StatusCode: http.StatusNotFound, Err: err}
	}
	l.logger.Info(ctx, "access", "path", reqPath)

	search := l.router.Search(reqPath)
	switch search.Status {
	case SearchRedirect:
		return LoadResult{StatusCode: http.StatusMovedPermanently, Location: search.Pathname}
	case SearchFoundStatic:
		return l.static(search.File)
	case SearchNotFound:
		return l.asset(ctx, reqPath)
	}

	l.logger.Debug(ctx, "resolve", "path", reqPath, "file", search.File)
	res, err = l.page(ctx, full, search)
	if err != nil {
		l.logger.Error(ctx, err, "Page failed", "path", reqPath, "file", search.File)
		return errorResult(err)
	}
	return res
}

// errorResult tags failures of the page's own source, compile errors
// included, as parse errors.
func errorResult(err error) LoadResult {
	t := errors.ErrorTypeUnknown
	if errors.IsCompileError(err) {
		t = errors.ErrorTypeParse
	}
	return LoadResult{StatusCode: http.StatusInternalServerError, ErrorType: t, Err: err}
}

func notFound(info *CollectionInfo) LoadResult {
	return LoadResult{
		StatusCode: http.StatusNotFound,
		Err:        errors.NewIOError(errors.ErrCodeFileNotFound, "Not Found", nil),
		Collection: info,
	}
}

func (l *Loader) static(file string) LoadResult {
	data, err := os.ReadFile(file)
	if err != nil {
		return errorResult(errors.NewIOError(errors.ErrCodeFileNotFound, "reading static file", err).
			WithLocation(file, 0, 0))
	}
	ct := mime.TypeByExtension(filepath.Ext(file))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return LoadResult{StatusCode: http.StatusOK, ContentType: ct, Contents: data}
}

func (l *Loader) asset(ctx context.Context, reqPath string) LoadResult {
	if l.assets != nil {
		a, ok, err := l.assets.LoadAsset(ctx, reqPath)
		if err != nil {
			return errorResult(err)
		}
		if ok {
			return LoadResult{StatusCode: http.StatusOK, ContentType: a.ContentType, Contents: a.Contents}
		}
	}
	return notFound(nil)
}

func (l *Loader) page(ctx context.Context, full *url.URL, search SearchResult) (LoadResult, error) {
	mod, err := l.modules.Load(ctx, search.File)
	if err != nil {
		return LoadResult{}, err
	}
	defer func() {
		if cerr := mod.Close(); cerr != nil {
			l.logger.Warn(ctx, cerr, "Closing module failed", "file", search.File)
		}
	}()

	var state *PaginationState
	var info *CollectionInfo
	desc, err := mod.CreateCollection(ctx)
	if err != nil {
		return LoadResult{}, err
	}
	if desc != nil {
		var early *LoadResult
		state, info, early, err = runCollection(ctx, desc, search)
		if err != nil {
			return LoadResult{}, err
		}
		if early != nil {
			return *early, nil
		}
	}

	requestURL := *full
	if search.Pathname != "/500" {
		requestURL.RawQuery = ""
	}
	requestURL.Fragment = ""

	html, err := mod.RenderPage(ctx, RenderInput{
		Request: Request{
			URL:          &requestURL,
			CanonicalURL: l.canonicalURL(requestURL.Path),
		},
		Collection: state,
		CSS:        mod.CSS(),
	})
	if err != nil {
		return LoadResult{}, err
	}

	return LoadResult{
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Contents:    []byte(InjectStylesheets(html, mod.Stylesheets())),
		Collection:  info,
	}, nil
}

// canonicalURL is the site URL of a page path, with a trailing slash for
// extensionless paths.
func (l *Loader) canonicalURL(p string) *url.URL {
	p = strings.TrimSuffix(p, "index.html")
	if path.Ext(p) == "" && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	u := *l.origin
	u.Path = path.Join("/", l.origin.Path, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery, u.Fragment = "", ""
	return &u
}

// runCollection validates the collection, selects route params, then loads and paginates
// the data. early is set when the request is answered without rendering.
func runCollection(ctx context.Context, desc *Collection, search SearchResult) (state *PaginationState, info *CollectionInfo, early *LoadResult, err error) {
	if err := desc.Validate(); err != nil {
		return nil, nil, nil, err
	}
	reqPath := search.Pathname
	pageSize := desc.EffectivePageSize()
	urls := newURLSet()

	var params Params
	if desc.HasRoutes {
		page := search.CurrentPage
		if page < 1 {
			page = 1
		}
		for _, route := range desc.Routes {
			base, err := desc.Permalink(ctx, route)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("[createCollection] permalink: %w", err)
			}
			urls.add(base)
			if params == nil && (base == reqPath || base+"/"+strconv.Itoa(page) == reqPath) {
				params = route
			}
		}
	}

	query := params
	if query == nil {
		query = Params{}
	}
	raw, err := desc.Data(ctx, query)
	if err != nil {
		return nil, nil, nil, err
	}
	if raw == nil {
		return nil, nil, nil, collectionError("[createCollection] `data()` returned nothing (empty data)")
	}
	data, ok := raw.([]any)
	if !ok {
		data = []any{raw}
	}

	info = &CollectionInfo{}
	if desc.RSS != nil {
		info.RSS = &RSSInfo{Options: desc.RSS, Data: append([]any(nil), data...)}
		if desc.RSSItems != nil {
			rssData := info.RSS.Data
			info.RSS.Items = func(ctx context.Context) ([]RSSItem, error) {
				return desc.RSSItems(ctx, rssData)
			}
		}
	}

	var st PaginationState
	switch {
	case search.CurrentPage > 0:
		st = Paginate(data, reqPath, search.CurrentPage, pageSize)
		bases := append([]string(nil), urls.order...)
		if len(bases) == 0 {
			bases = []string{stripPage(reqPath, search.CurrentPage)}
		}
		for _, base := range bases {
			for _, u := range pageURLs(base, st.Page.Last) {
				urls.add(u)
			}
		}
	case desc.Paginated():
		info.AdditionalURLs = urls.sorted()
		return nil, info, &LoadResult{
			StatusCode: http.StatusMovedPermanently,
			Location:   strings.TrimSuffix(reqPath, "/") + "/1",
			Collection: info,
		}, nil
	default:
		st = Paginate(data, reqPath, 0, pageSize)
	}
	info.AdditionalURLs = urls.sorted()

	if len(st.Data) == 0 {
		res := notFound(info)
		return nil, info, &res, nil
	}
	st.Params = params
	return &st, info, nil, nil
}
