package build

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/runtime"
	"github.com/conneroisu/astral/internal/scanner"
)

// PageLoader answers request URIs. *runtime.Loader implements it.
type PageLoader interface {
	Load(ctx context.Context, rawPath string) runtime.LoadResult
}

// ExportOptions locates the project and the output.
type ExportOptions struct {
	PagesDir  string
	PublicDir string
	DistDir   string
	// Site is the public origin. Required for RSS feeds; enables the
	// sitemap.
	Site    string
	Workers int
}

// ExportResult summarizes a static export.
type ExportResult struct {
	// Pages are the output paths of every HTML page, sorted.
	Pages    []string
	Files    int
	Duration time.Duration
}

type builtFile struct {
	contentType string
	contents    []byte
}

// Exporter renders every page of a project into static files.
type Exporter struct {
	loader PageLoader
	opts   ExportOptions
	logger logging.Logger

	mu     sync.Mutex
	loaded map[string]bool
	files  map[string]builtFile
}

// NewExporter creates an exporter answering through loader.
func NewExporter(loader PageLoader, opts ExportOptions, logger logging.Logger) *Exporter {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		loader: loader,
		opts:   opts,
		logger: logger.WithComponent("export"),
		loaded: make(map[string]bool),
		files:  make(map[string]builtFile),
	}
}

// Export clears DistDir and writes the rendered pages, the assets they
// reference, RSS feeds, the public directory and a sitemap into it.
func (e *Exporter) Export(ctx context.Context) (*ExportResult, error) {
	start := time.Now()

	pages, err := e.pages()
	if err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "Building pages", "count", len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, rel := range pages {
		rel := rel
		g.Go(func() error {
			if isCollectionPage(rel) {
				return e.buildCollection(gctx, rel)
			}
			return e.buildStatic(gctx, rel)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := e.crawlAssets(ctx); err != nil {
		return nil, err
	}

	htmlPages := e.htmlPages()
	if e.opts.Site != "" {
		if err := e.addSitemap(htmlPages); err != nil {
			return nil, err
		}
	}

	if err := os.RemoveAll(e.opts.DistDir); err != nil {
		return nil, err
	}
	if err := e.write(); err != nil {
		return nil, err
	}
	copied, err := copyDir(e.opts.PublicDir, e.opts.DistDir)
	if err != nil {
		return nil, fmt.Errorf("copying public directory: %w", err)
	}

	res := &ExportResult{Pages: htmlPages, Files: len(e.files) + copied, Duration: time.Since(start)}
	e.logger.Info(ctx, "Build complete", "pages", len(res.Pages), "files", res.Files, "duration", res.Duration)
	return res, nil
}

// pages lists the page sources relative to PagesDir.
func (e *Exporter) pages() ([]string, error) {
	var out []string
	err := filepath.WalkDir(e.opts.PagesDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !scanner.IsSource(p) {
			return nil
		}
		rel, err := filepath.Rel(e.opts.PagesDir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return out, nil
}

func isCollectionPage(rel string) bool {
	name := path.Base(rel)
	return strings.HasPrefix(name, "$") && strings.HasSuffix(name, ".astro")
}

// staticURL is the request path of a page source.
func staticURL(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if rel == "index" {
		return "/"
	}
	if strings.HasSuffix(rel, "/index") {
		return "/" + strings.TrimSuffix(rel, "index")
	}
	return "/" + rel
}

// collectionURL is the base URL of a $name.astro source.
func collectionURL(rel string) string {
	dir, name := path.Split(rel)
	return "/" + dir + strings.TrimSuffix(strings.TrimPrefix(name, "$"), ".astro")
}

// outputPath is the file an HTML page is written to. Root error pages
// become /404.html and /500.html for static hosts.
func outputPath(u string) string {
	switch u {
	case "/404", "/500":
		return u + ".html"
	}
	return path.Join(u, "index.html")
}

func (e *Exporter) buildStatic(ctx context.Context, rel string) error {
	u := staticURL(rel)
	res := e.load(ctx, u)
	if res.StatusCode >= http.StatusInternalServerError {
		return pageError(rel, res)
	}
	return nil
}

func (e *Exporter) buildCollection(ctx context.Context, rel string) error {
	base := collectionURL(rel)
	res := e.load(ctx, base)
	if res.StatusCode >= http.StatusInternalServerError {
		return pageError(rel, res)
	}
	if res.StatusCode == http.StatusOK && res.Collection == nil {
		return errors.NewCompileError(errors.ErrCodeInvalidCollection,
			"collection page must export createCollection()").WithLocation(rel, 0, 0)
	}
	if res.Collection == nil {
		return nil
	}

	// Pages discover further pages, so follow the URLs until none is new.
	queue := append([]string(nil), res.Collection.AdditionalURLs...)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if e.seen(u) {
			continue
		}
		next := e.load(ctx, u)
		if next.StatusCode >= http.StatusInternalServerError {
			return pageError(rel, next)
		}
		if next.Collection != nil {
			queue = append(queue, next.Collection.AdditionalURLs...)
		}
	}

	if res.Collection.RSS != nil {
		return e.buildFeed(ctx, rel, base, res.Collection.RSS)
	}
	return nil
}

func (e *Exporter) buildFeed(ctx context.Context, rel, base string, info *runtime.RSSInfo) error {
	if e.opts.Site == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"createCollection() declares rss but runtime.site is not set").WithLocation(rel, 0, 0)
	}
	var items []runtime.RSSItem
	if info.Items != nil {
		var err error
		if items, err = info.Items(ctx); err != nil {
			return err
		}
	}
	name := strings.TrimPrefix(base, "/")
	feed, err := GenerateRSS(info, items, e.opts.Site, name)
	if err != nil {
		return err
	}
	e.add("/feed/"+name+".xml", builtFile{contentType: "application/rss+xml", contents: []byte(feed)})
	return nil
}

func pageError(rel string, res runtime.LoadResult) error {
	if res.Err != nil {
		return fmt.Errorf("%s: %w", rel, res.Err)
	}
	return fmt.Errorf("%s: status %d", rel, res.StatusCode)
}

// seen marks u as loaded and reports whether it already was.
func (e *Exporter) seen(u string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded[u] {
		return true
	}
	e.loaded[u] = true
	return false
}

// load renders u once and keeps it when it answers 200.
func (e *Exporter) load(ctx context.Context, u string) runtime.LoadResult {
	e.mu.Lock()
	e.loaded[u] = true
	e.mu.Unlock()

	res := e.loader.Load(ctx, u)
	if res.StatusCode == http.StatusOK {
		e.add(outputPath(u), builtFile{contentType: "text/html", contents: res.Contents})
	}
	return res
}

func (e *Exporter) add(name string, f builtFile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = f
}

// crawlAssets loads every local script, stylesheet and image the built
// pages reference, following module imports.
func (e *Exporter) crawlAssets(ctx context.Context) error {
	e.mu.Lock()
	var queue []string
	for _, f := range e.files {
		if f.contentType == "text/html" {
			queue = append(queue, htmlReferences(f.contents)...)
		}
	}
	e.mu.Unlock()
	sort.Strings(queue)

	fetched := make(map[string]bool)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if fetched[u] || e.isPublic(u) {
			continue
		}
		fetched[u] = true

		res := e.loader.Load(ctx, u)
		switch {
		case res.StatusCode == http.StatusOK:
		case res.StatusCode >= http.StatusInternalServerError:
			return pageError(u, res)
		default:
			e.logger.Warn(ctx, res.Err, "Referenced asset not found", "url", u)
			continue
		}
		e.add(u, builtFile{contentType: res.ContentType, contents: res.Contents})
		if strings.Contains(res.ContentType, "javascript") {
			queue = append(queue, moduleReferences(res.Contents)...)
		}
	}
	return nil
}

// isPublic reports whether u is a file of the public directory, which is
// copied as is.
func (e *Exporter) isPublic(u string) bool {
	if e.opts.PublicDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(e.opts.PublicDir, filepath.FromSlash(strings.TrimPrefix(u, "/"))))
	return err == nil && info.Mode().IsRegular()
}

// htmlPages returns the built page paths, without the implicit first
// page of paginated collections.
func (e *Exporter) htmlPages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for name, f := range e.files {
		if f.contentType != "text/html" || strings.HasSuffix(name, "/1/index.html") {
			continue
		}
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return naturalLess(out[i], out[j]) })
	return out
}

func (e *Exporter) addSitemap(pages []string) error {
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		if p == "/404.html" || p == "/500.html" {
			continue
		}
		u, err := CanonicalURL(p, e.opts.Site)
		if err != nil {
			return err
		}
		urls = append(urls, u)
	}
	sitemap, err := GenerateSitemap(urls)
	if err != nil {
		return err
	}
	e.add("/sitemap.xml", builtFile{contentType: "application/xml", contents: []byte(sitemap)})
	return nil
}

func (e *Exporter) write() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, f := range e.files {
		out := filepath.Join(e.opts.DistDir, filepath.FromSlash(strings.TrimPrefix(name, "/")))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out, f.contents, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

// copyDir copies the regular files below src into dst and returns their
// count. A missing src copies nothing.
func copyDir(src, dst string) (int, error) {
	if src == "" {
		return 0, nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if err := copyFile(p, filepath.Join(dst, rel)); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
