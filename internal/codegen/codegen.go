// Package codegen lowers an optimized template tree to JavaScript.
//
// The frontmatter script yields hoisted imports and exports, a props
// preamble built from exported let/const declarations and an optional
// createCollection function. The markup becomes nested h() calls wrapped
// in a single Fragment.
package codegen

import (
	"context"
	"strings"

	"github.com/tdewolff/parse/v2/js"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/content"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/script"
	"github.com/conneroisu/astral/internal/wrapper"
)

// Options configures Generate.
type Options struct {
	// Filename is the on-disk path of the component.
	Filename string
	// FileID is the project relative path used in diagnostics.
	FileID string
	// AstroRoot is the on-disk source root component URLs are relative to.
	AstroRoot string

	Extensions wrapper.Extensions
	Resolve    wrapper.PackageResolver
	Content    *content.Extractor
}

// Result is the generated code for one component.
type Result struct {
	Script           string
	Imports          []string
	HTML             string
	CSS              string
	CreateCollection string
	Components       map[string]wrapper.Component
}

type generator struct {
	opts Options

	components map[string]wrapper.Component
	acquired   map[wrapper.Framework]bool
	imports    []string
	seen       map[string]bool
	css        []string

	resolver *wrapper.Resolver
}

// Generate produces the code for tree.
func Generate(ctx context.Context, tree *ast.Tree, opts Options) (*Result, error) {
	if opts.Extensions == nil {
		opts.Extensions = wrapper.DefaultExtensions()
	}
	if opts.Content == nil {
		opts.Content = &content.Extractor{}
	}
	g := &generator{
		opts:       opts,
		components: make(map[string]wrapper.Component),
		acquired:   make(map[wrapper.Framework]bool),
		seen:       make(map[string]bool),
	}

	res := &Result{}
	if mod := tree.Get(tree.Module); mod != nil {
		var err error
		res.Script, res.CreateCollection, err = g.module(ctx, mod.Content)
		if err != nil {
			return nil, err
		}
	}

	g.resolver = &wrapper.Resolver{
		AstroRoot:     slashPath(opts.AstroRoot),
		Filename:      slashPath(opts.Filename),
		FrameworkURLs: make(map[string]string),
	}

	if tree.CSS.IsValid() {
		ast.Inspect(tree, tree.CSS, func(id, _ ast.NodeID) bool {
			if n := tree.Get(id); n.Kind == ast.KindStyle {
				g.css = append(g.css, n.Content)
				return false
			}
			return true
		})
	}

	children, err := g.children(ctx, tree, tree.HTML)
	if err != nil {
		return nil, err
	}
	res.HTML = fragment(children)

	res.Imports = g.imports
	res.CSS = strings.Join(g.css, "\n\n")
	res.Components = g.components
	return res, nil
}

func slashPath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// acquire resolves the runtime packages of fw the first time a hydrated
// component of that framework is used.
func (g *generator) acquire(ctx context.Context, fw wrapper.Framework) error {
	if g.acquired[fw] {
		return nil
	}
	urls, err := wrapper.AcquireFrameworkURLs(ctx, []wrapper.Framework{fw}, g.opts.Resolve)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "acquiring framework runtimes", err).
			WithLocation(g.opts.FileID, 0, 0)
	}
	for pkg, u := range urls {
		g.resolver.FrameworkURLs[pkg] = u
	}
	g.acquired[fw] = true
	return nil
}

func (g *generator) addImport(stmt string) {
	if stmt == "" || g.seen[stmt] {
		return
	}
	g.seen[stmt] = true
	g.imports = append(g.imports, stmt)
}

// module splits the frontmatter into hoisted statements and the render
// body.
func (g *generator) module(ctx context.Context, src string) (body, createCollection string, err error) {
	code, err := script.Normalize(src, g.opts.FileID)
	if err != nil {
		return "", "", err
	}
	if code == "" {
		return "", "", nil
	}
	tree, err := script.Parse(code, g.opts.FileID)
	if err != nil {
		return "", "", err
	}

	var stmts, props []string
	for _, stmt := range tree.List {
		switch s := stmt.(type) {
		case *js.ImportStmt:
			g.recordComponent(s)
			g.addImport(script.Statement(s))

		case *js.ExportStmt:
			switch d := s.Decl.(type) {
			case *js.VarDecl:
				if hoistedExport(d) {
					g.addImport(script.Statement(s))
					continue
				}
				for _, el := range d.List {
					name := script.VarName(el.Binding)
					if name == "" {
						return "", "", errors.NewCompileError(errors.ErrCodeParse,
							"exported props must be plain identifiers").WithLocation(g.opts.FileID, 0, 0)
					}
					if el.Default != nil {
						name += " = " + script.Print(el.Default)
					}
					props = append(props, name)
				}
			case *js.FuncDecl:
				if d.Name != nil && string(d.Name.Data) == "createCollection" {
					createCollection, err = g.createCollection(ctx, d)
					if err != nil {
						return "", "", err
					}
					continue
				}
				g.addImport(script.Statement(s))
			default:
				g.addImport(script.Statement(s))
			}

		case *js.VarDecl:
			rw, ok, err := g.opts.Content.RewriteDecl(ctx, s, g.opts.Filename, g.opts.FileID)
			if err != nil {
				return "", "", err
			}
			if ok {
				for _, imp := range rw.Imports {
					g.addImport(imp)
				}
				stmts = append(stmts, rw.Code)
				continue
			}
			stmts = append(stmts, script.Statement(s))

		default:
			stmts = append(stmts, script.Statement(s))
		}
	}

	var b strings.Builder
	if len(props) > 0 {
		b.WriteString("let {" + strings.Join(props, ", ") + ",} = props;\n")
	}
	b.WriteString(strings.Join(stmts, "\n"))
	return strings.TrimSpace(b.String()), createCollection, nil
}

// hoistedExport reports whether d declares __layout or __content.
func hoistedExport(d *js.VarDecl) bool {
	for _, el := range d.List {
		switch script.VarName(el.Binding) {
		case "__layout", "__content":
			return true
		}
	}
	return false
}

// recordComponent registers every binding of s under its local name.
func (g *generator) recordComponent(s *js.ImportStmt) {
	spec := script.ModulePath(s.Module)
	ext, fw := g.opts.Extensions.Lookup(spec)
	add := func(local, export string) {
		g.components[local] = wrapper.Component{
			LocalName: local,
			Export:    export,
			Extension: ext,
			Specifier: spec,
			Framework: fw,
		}
	}

	if len(s.Default) > 0 {
		add(string(s.Default), "default")
	}
	for _, alias := range s.List {
		if len(alias.Binding) == 0 {
			continue
		}
		local := string(alias.Binding)
		switch name := string(alias.Name); {
		case name == "":
			add(local, local)
		case name == "*":
			add(local, "*")
		default:
			if lit, ok := script.Unquote(name); ok {
				name = lit
			}
			add(local, name)
		}
	}
}

// createCollection rewrites fetchContent declarations in the function body.
// Their imports are emitted ahead of the exported function.
func (g *generator) createCollection(ctx context.Context, d *js.FuncDecl) (string, error) {
	text := script.Print(d)
	var imports []string
	for _, stmt := range d.Body.List {
		vd, ok := stmt.(*js.VarDecl)
		if !ok {
			continue
		}
		rw, ok, err := g.opts.Content.RewriteDecl(ctx, vd, g.opts.Filename, g.opts.FileID)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		old := script.Print(vd)
		idx := strings.Index(text, old)
		if idx < 0 {
			return "", errors.NewInternalError(errors.ErrCodeInternalError,
				"locating fetchContent declaration in createCollection", nil).WithLocation(g.opts.FileID, 0, 0)
		}
		text = text[:idx] + strings.TrimSuffix(rw.Code, ";") + text[idx+len(old):]
		imports = append(imports, rw.Imports...)
	}

	out := "export " + text
	if len(imports) > 0 {
		out = strings.Join(imports, "\n") + "\n" + out
	}
	return out, nil
}
