// Package content rewrites Astro.fetchContent calls into static imports.
//
// A declaration such as
//
//	const posts = Astro.fetchContent('./post/*.md')
//
// is resolved at compile time: the glob is expanded relative to the
// component, every match becomes an import, and the call is replaced by an
// array literal of the imported content.
package content

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tdewolff/parse/v2/js"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/script"
)

// AwaitWarning is reported when a fetchContent call is awaited.
const AwaitWarning = "awaiting Astro.fetchContent() not necessary"

var fetchCall = regexp.MustCompile(`(?s)^[(\s]*(await\s+)?[(\s]*Astro\s*\.\s*fetchContent\s*\((.*?)\)[)\s;]*$`)

// Call is one recognised fetchContent declaration.
type Call struct {
	Keyword   string
	Namespace string
	Glob      string
	Awaited   bool
}

// Recognize reports whether el declares a fetchContent call. A call whose
// argument is not a string literal is a fatal error.
func Recognize(keyword string, el js.BindingElement, file string) (Call, bool, error) {
	name := script.VarName(el.Binding)
	if name == "" || el.Default == nil {
		return Call{}, false, nil
	}
	m := fetchCall.FindStringSubmatch(script.Print(el.Default))
	if m == nil {
		return Call{}, false, nil
	}
	glob, ok := script.Unquote(strings.TrimSpace(m[2]))
	if !ok {
		return Call{}, false, errors.ErrDynamicGlob(file)
	}
	return Call{Keyword: keyword, Namespace: name, Glob: glob, Awaited: m[1] != ""}, true, nil
}

// Extractor resolves calls for the files of one project.
type Extractor struct {
	// ProjectRoot is the directory file metadata is made relative to.
	ProjectRoot string
	// PagesDir is the routed pages directory. Matches below it get a url.
	PagesDir string

	Warnings *errors.Collector
	Logger   logging.Logger
}

// Rewrite is the generated replacement for one declaration.
type Rewrite struct {
	Imports []string
	Code    string
}

// RewriteDecl rewrites every fetchContent declarator of decl. ok is false
// when decl declares none, in which case it must be emitted unchanged.
func (e *Extractor) RewriteDecl(ctx context.Context, decl *js.VarDecl, filename, fileID string) (Rewrite, bool, error) {
	keyword := script.DeclKeyword(decl)
	var calls []Call
	var others []js.BindingElement
	for _, el := range decl.List {
		c, ok, err := Recognize(keyword, el, fileID)
		if err != nil {
			return Rewrite{}, false, err
		}
		if ok {
			calls = append(calls, c)
		} else {
			others = append(others, el)
		}
	}
	if len(calls) == 0 {
		return Rewrite{}, false, nil
	}

	var out Rewrite
	var code []string
	for _, c := range calls {
		if c.Awaited {
			e.warn(ctx, fileID)
		}
		r, err := e.Resolve(c, filename)
		if err != nil {
			return Rewrite{}, false, err
		}
		out.Imports = append(out.Imports, r.Imports...)
		code = append(code, r.Code)
	}
	for _, el := range others {
		s := keyword + " " + script.Print(el.Binding)
		if el.Default != nil {
			s += " = " + script.Print(el.Default)
		}
		code = append(code, s+";")
	}
	out.Code = strings.Join(code, "\n")
	return out, true, nil
}

func (e *Extractor) warn(ctx context.Context, fileID string) {
	if e.Warnings != nil {
		e.Warnings.Warn(fileID, AwaitWarning)
	}
	if e.Logger != nil {
		e.Logger.Warn(ctx, nil, AwaitWarning, "file", fileID)
	}
}

// Identifier is the local name of the i-th match of namespace.
func Identifier(namespace string, i int) string {
	return fmt.Sprintf("__fetch_%s_%d", namespace, i)
}

// Resolve expands c relative to filename and builds its replacement.
func (e *Extractor) Resolve(c Call, filename string) (Rewrite, error) {
	matches, err := Glob(filepath.Dir(filename), c.Glob)
	if err != nil {
		return Rewrite{}, errors.NewIOError(errors.ErrCodeFileNotFound, "resolving "+c.Glob, err).
			WithLocation(filename, 0, 0)
	}

	dir := filepath.Dir(filename)
	out := Rewrite{Imports: make([]string, 0, len(matches))}
	items := make([]string, 0, len(matches))
	for i, match := range matches {
		id := Identifier(c.Namespace, i)

		rel, err := filepath.Rel(dir, match)
		if err != nil {
			return Rewrite{}, err
		}
		spec := filepath.ToSlash(rel)
		if !strings.HasPrefix(spec, "../") {
			spec = "./" + spec
		}
		out.Imports = append(out.Imports, "import * as "+id+" from '"+spec+"';")

		item := "{..." + id + ".__content, file: " + script.Quote(e.projectPath(match))
		if url, ok := e.routeURL(match); ok {
			item += ", url: " + script.Quote(url)
		}
		items = append(items, item+"}")
	}

	out.Code = c.Keyword + " " + c.Namespace + " = [" + strings.Join(items, ", ") + "];"
	return out, nil
}

func (e *Extractor) projectPath(abs string) string {
	if e.ProjectRoot == "" {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(e.ProjectRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return "/" + filepath.ToSlash(rel)
}

// routeURL returns the page route of a file below PagesDir.
func (e *Extractor) routeURL(abs string) (string, bool) {
	if e.PagesDir == "" {
		return "", false
	}
	rel, err := filepath.Rel(e.PagesDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return RouteFor(filepath.ToSlash(rel)), true
}

// RouteFor maps a path relative to the pages directory to its URL.
func RouteFor(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if rel == "index" {
		return "/"
	}
	return "/" + strings.TrimSuffix(rel, "/index")
}

// Glob expands pattern relative to dir and returns matching files as
// absolute paths in sorted order.
func Glob(dir, pattern string) ([]string, error) {
	full := filepath.ToSlash(filepath.Join(dir, filepath.FromSlash(pattern)))
	base, rest := doublestar.SplitPattern(full)

	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m))
	}
	return out, nil
}
