package runtime

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SearchStatus is the outcome of mapping a request path onto the project.
type SearchStatus int

const (
	SearchNotFound SearchStatus = iota
	// SearchFound is a page module to execute.
	SearchFound
	// SearchFoundStatic is a file under the public directory.
	SearchFoundStatic
	// SearchRedirect asks for the trailing slash form of a directory page.
	SearchRedirect
)

// String returns the status name.
func (s SearchStatus) String() string {
	switch s {
	case SearchFound:
		return "FOUND_DYNAMIC"
	case SearchFoundStatic:
		return "FOUND_STATIC"
	case SearchRedirect:
		return "REDIRECT"
	default:
		return "NOT_FOUND"
	}
}

// SearchResult locates the file answering a request.
type SearchResult struct {
	Status SearchStatus
	// File is the absolute path of the page or static file.
	File string
	// Pathname is the request path, or the redirect target.
	Pathname string
	// CurrentPage is the trailing page number of a collection request, 0
	// when absent.
	CurrentPage int
	// Collection is set when File is a $name collection page.
	Collection bool
}

// Router maps request paths onto the pages and public directories.
type Router struct {
	PagesDir  string
	PublicDir string
}

var pageExtensions = []string{".astro", ".md"}

var numericSegment = regexp.MustCompile(`^\d+$`)

// Search finds the file answering reqPath. reqPath must already be a
// clean, absolute, decoded URL path.
func (r *Router) Search(reqPath string) SearchResult {
	base := strings.TrimPrefix(reqPath, "/")

	if strings.HasSuffix(reqPath, "/") {
		if f, ok := r.findPage(base + "index"); ok {
			return SearchResult{Status: SearchFound, File: f, Pathname: reqPath}
		}
	} else {
		if f, ok := r.findPage(base); ok {
			return SearchResult{Status: SearchFound, File: f, Pathname: reqPath}
		}
		if _, ok := r.findPage(base + "/index"); ok {
			return SearchResult{Status: SearchRedirect, Pathname: reqPath + "/"}
		}
	}

	if f, ok := r.findStatic(reqPath); ok {
		return SearchResult{Status: SearchFoundStatic, File: f, Pathname: reqPath}
	}

	if path.Ext(reqPath) == "" {
		if res, ok := r.findCollection(reqPath); ok {
			return res
		}
	}

	return SearchResult{Status: SearchNotFound, Pathname: reqPath}
}

func (r *Router) findPage(rel string) (string, bool) {
	if r.PagesDir == "" || strings.Contains(rel, "$") {
		return "", false
	}
	for _, ext := range pageExtensions {
		candidate := filepath.Join(r.PagesDir, filepath.FromSlash(rel+ext))
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *Router) findStatic(reqPath string) (string, bool) {
	if r.PublicDir == "" || strings.HasSuffix(reqPath, "/") {
		return "", false
	}
	candidate := filepath.Join(r.PublicDir, filepath.FromSlash(strings.TrimPrefix(reqPath, "/")))
	return candidate, isFile(candidate)
}

// findCollection matches reqPath against every $name.astro page. The page
// with the longest base URL wins.
func (r *Router) findCollection(reqPath string) (SearchResult, bool) {
	pages, err := r.CollectionPages()
	if err != nil {
		return SearchResult{}, false
	}

	best := ""
	bestFile := ""
	for url, file := range pages {
		if reqPath != url && !strings.HasPrefix(reqPath, strings.TrimSuffix(url, "/")+"/") {
			continue
		}
		if len(url) > len(best) {
			best, bestFile = url, file
		}
	}
	if bestFile == "" {
		return SearchResult{}, false
	}

	res := SearchResult{Status: SearchFound, File: bestFile, Pathname: reqPath, Collection: true}
	rest := strings.TrimPrefix(reqPath, best)
	if i := strings.LastIndex(rest, "/"); i >= 0 && numericSegment.MatchString(rest[i+1:]) {
		if n, err := strconv.Atoi(rest[i+1:]); err == nil && n > 0 {
			res.CurrentPage = n
		}
	}
	return res, true
}

// CollectionPages maps the base URL of every collection page to its file.
func (r *Router) CollectionPages() (map[string]string, error) {
	out := make(map[string]string)
	if r.PagesDir == "" {
		return out, nil
	}
	matches, err := doublestar.Glob(os.DirFS(r.PagesDir), "**/$*.astro", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		dir, name := path.Split(m)
		url := "/" + dir + strings.TrimSuffix(strings.TrimPrefix(name, "$"), ".astro")
		out[url] = filepath.Join(r.PagesDir, filepath.FromSlash(m))
	}
	return out, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
