// Package styles scopes component styles to the file that declares them.
//
// Optimize computes one scoped class per file, appends it to the class
// attribute of every scoped element and compiles every <style> block to
// scoped, prefixed CSS. Style compilation runs concurrently; the tree is
// patched only after every job has finished.
package styles

import (
	"context"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/errors"
)

// Options configures one Optimize call.
type Options struct {
	// Filename is the on-disk path of the component. Its directory is a
	// Sass include path.
	Filename string
	// FileID is the project relative path the scoped class is derived from.
	FileID string
	// Production compresses Sass output and minifies the final CSS.
	Production bool
	// Sass compiles sass and scss blocks. Required only when such a block
	// is present.
	Sass SassCompiler
	// NodeModules finds the extra Sass include path. May be nil.
	NodeModules NodeModulesLocator
	// SkipAutoprefix leaves CSS as scoped.
	SkipAutoprefix bool
}

// Result is the outcome of Optimize.
type Result struct {
	Tree        *ast.Tree
	ScopedClass string
}

type styleJob struct {
	node     ast.NodeID
	source   string
	language Language
	css      string
}

// Optimize returns a copy of tree with scoped classes injected and styles
// compiled. The input tree is not modified.
func Optimize(ctx context.Context, tree *ast.Tree, opts Options) (*Result, error) {
	scoped := ScopedClass(opts.FileID)

	var patches []ast.Patch
	var jobs []*styleJob

	addStyle := func(id ast.NodeID) error {
		src := styleSource(tree, id)
		if strings.TrimSpace(src) == "" {
			return nil
		}
		lang, err := styleLanguage(tree, id, opts.FileID)
		if err != nil {
			return err
		}
		jobs = append(jobs, &styleJob{node: id, source: src, language: lang})
		return nil
	}

	var inspectErr error
	if tree.CSS.IsValid() {
		ast.Inspect(tree, tree.CSS, func(id, _ ast.NodeID) bool {
			if inspectErr != nil {
				return false
			}
			if tree.Get(id).Kind == ast.KindStyle {
				inspectErr = addStyle(id)
				return false
			}
			return true
		})
	}
	if tree.HTML.IsValid() {
		ast.Inspect(tree, tree.HTML, func(id, _ ast.NodeID) bool {
			if inspectErr != nil {
				return false
			}
			n := tree.Get(id)
			switch {
			case n.Kind == ast.KindStyle, n.Kind == ast.KindElement && strings.EqualFold(n.Name, "style"):
				inspectErr = addStyle(id)
				return false
			case n.Kind == ast.KindElement && !IsNeverScoped(n.Name):
				if p, ok := classPatch(tree, id, scoped); ok {
					patches = append(patches, p)
				}
			}
			return true
		})
	}
	if inspectErr != nil {
		return nil, inspectErr
	}

	if err := runJobs(ctx, jobs, scoped, opts); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		patches = append(patches, stylePatch(tree, job))
	}

	return &Result{Tree: tree.Apply(patches), ScopedClass: scoped}, nil
}

func runJobs(ctx context.Context, jobs []*styleJob, scoped string, opts Options) error {
	if len(jobs) == 0 {
		return nil
	}

	var includePaths []string
	if opts.Filename != "" {
		includePaths = append(includePaths, filepath.Dir(opts.Filename))
		if opts.NodeModules != nil {
			if nm := opts.NodeModules.NodeModules(opts.Filename); nm != "" {
				includePaths = append(includePaths, nm)
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			out, err := transformStyle(ctx, job, scoped, includePaths, opts)
			if err != nil {
				return err
			}
			job.css = out
			return nil
		})
	}
	return g.Wait()
}

func transformStyle(ctx context.Context, job *styleJob, scoped string, includePaths []string, opts Options) (string, error) {
	src := job.source
	switch job.language {
	case LanguageCSS, LanguagePostCSS:
	case LanguageSCSS, LanguageSass:
		if opts.Sass == nil {
			return "", errors.NewCompileError(errors.ErrCodeStyleCompile,
				"no sass compiler configured for <style lang=\""+string(job.language)+"\">").
				WithLocation(opts.FileID, 0, 0)
		}
		compiled, err := opts.Sass.Compile(ctx, SassRequest{
			Source:       src,
			Language:     job.language,
			IncludePaths: includePaths,
			Compressed:   opts.Production,
		})
		if err != nil {
			return "", styleError(err, opts.FileID)
		}
		src = compiled
	default:
		return "", errors.ErrUnsupportedStyle(string(job.language), opts.FileID)
	}

	out, err := ScopeCSS(src, scoped)
	if err != nil {
		return "", styleError(err, opts.FileID)
	}
	if opts.SkipAutoprefix {
		return out, nil
	}
	out, err = Autoprefix(out, opts.Production)
	if err != nil {
		return "", styleError(err, opts.FileID)
	}
	return out, nil
}

func styleError(err error, file string) error {
	return &errors.AstralError{
		Type:     errors.ErrorTypeCompile,
		Code:     errors.ErrCodeStyleCompile,
		Message:  "compiling styles",
		Cause:    err,
		FilePath: file,
	}
}

// styleSource returns the text of a Style node or a <style> element.
func styleSource(t *ast.Tree, id ast.NodeID) string {
	n := t.Get(id)
	if n.Kind == ast.KindStyle {
		return n.Content
	}
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		if cn := t.Get(c); cn != nil && cn.Kind == ast.KindText {
			parts = append(parts, cn.Text())
		}
	}
	return strings.Join(parts, "\n")
}

// stylePatch replaces a style's content and sets type="text/css" in place
// of lang and type.
func stylePatch(t *ast.Tree, job *styleJob) ast.Patch {
	css := job.css
	return ast.Patch{
		Target: job.node,
		Rewrite: func(n ast.Node, alloc func(ast.Node) ast.NodeID) ast.Node {
			if n.Kind == ast.KindStyle {
				n.Content = css
			} else {
				n.Children = []ast.NodeID{alloc(ast.Node{Kind: ast.KindText, Data: css})}
			}

			attrs := make([]ast.NodeID, 0, len(n.Attributes)+1)
			for _, a := range n.Attributes {
				switch t.Get(a).Name {
				case "lang", "type":
					continue
				}
				attrs = append(attrs, a)
			}
			typ := alloc(ast.Node{Kind: ast.KindText, Data: "text/css", Raw: "text/css", HasRaw: true})
			attrs = append(attrs, alloc(ast.Node{Kind: ast.KindAttribute, Name: "type", Value: []ast.NodeID{typ}}))
			n.Attributes = attrs
			return n
		},
	}
}
