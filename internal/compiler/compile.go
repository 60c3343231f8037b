package compiler

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/codegen"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/script"
	"github.com/conneroisu/astral/internal/styles"
	"github.com/conneroisu/astral/internal/wrapper"
)

// Input is one file to compile.
type Input struct {
	Source []byte
	// Filename is the on-disk path of the file.
	Filename string
	// FileID is the slash separated project relative path. Derived from
	// Filename when empty.
	FileID string
	// Tree is the parsed template. When nil the session Parser is run on
	// Source.
	Tree *ast.Tree
	// Markdown marks a markdown page. Its YAML frontmatter is split off
	// before parsing. Set automatically for .md files.
	Markdown bool
}

// Output is a compiled module.
type Output struct {
	FileID      string
	Contents    string
	CSS         string
	ScopedClass string
	// IsPage is set for files that export __renderPage.
	IsPage bool
	// HasCollection is set when the module exports createCollection.
	HasCollection bool
	Components    []wrapper.Component
	Warnings      []errors.Diagnostic
}

// Compile runs the optimize and codegen passes over in and assembles the
// final module text.
func (s *Session) Compile(ctx context.Context, in Input) (*Output, error) {
	if in.FileID == "" {
		in.FileID = s.fileID(in.Filename)
	}
	if strings.EqualFold(filepath.Ext(in.Filename), ".md") {
		in.Markdown = true
	}

	log := s.cfg.Logger.WithComponent("compiler").With("file", in.FileID)
	op := logging.StartOperation(log, "compile")

	out, err := s.compile(ctx, in)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	for _, w := range out.Warnings {
		s.warnings.Add(w)
	}
	op.End(ctx)
	return out, nil
}

func (s *Session) compile(ctx context.Context, in Input) (*Output, error) {
	source := in.Source
	var fm *Frontmatter
	if in.Markdown {
		var body []byte
		var err error
		fm, body, err = SplitFrontmatter(source, in.FileID)
		if err != nil {
			return nil, err
		}
		source = body
	}

	tree := in.Tree
	if tree == nil {
		if s.cfg.Parser == nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "no template parser configured").
				WithLocation(in.FileID, 0, 0)
		}
		var err error
		tree, err = s.cfg.Parser.Parse(ctx, source, in.Filename)
		if err != nil {
			return nil, err
		}
	} else {
		tree = tree.Clone()
	}

	if fm != nil {
		if err := attachFrontmatter(tree, fm, source); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeInternalError, "encoding frontmatter", err).
				WithLocation(in.FileID, 0, 0)
		}
	}

	optimized, err := styles.Optimize(ctx, tree, styles.Options{
		Filename:    in.Filename,
		FileID:      in.FileID,
		Production:  s.cfg.Production,
		Sass:        s.cfg.Sass,
		NodeModules: s,
	})
	if err != nil {
		return nil, err
	}

	warnings := errors.NewCollector()
	gen, err := codegen.Generate(ctx, optimized.Tree, codegen.Options{
		Filename:   in.Filename,
		FileID:     in.FileID,
		AstroRoot:  s.cfg.AstroRoot,
		Extensions: s.cfg.Extensions,
		Resolve:    s,
		Content:    s.extractor(warnings),
	})
	if err != nil {
		return nil, err
	}

	page := in.Markdown || isPage(optimized.Tree)
	out := &Output{
		FileID:        in.FileID,
		Contents:      Assemble(gen, page),
		CSS:           gen.CSS,
		ScopedClass:   optimized.ScopedClass,
		IsPage:        page,
		HasCollection: gen.CreateCollection != "",
		Warnings:      warnings.All(),
	}
	for _, c := range gen.Components {
		out.Components = append(out.Components, c)
	}
	sort.Slice(out.Components, func(i, j int) bool {
		return out.Components[i].LocalName < out.Components[j].LocalName
	})
	return out, nil
}

func (s *Session) fileID(filename string) string {
	if s.cfg.ProjectRoot != "" {
		if rel, err := filepath.Rel(s.cfg.ProjectRoot, filename); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filename)
}

// attachFrontmatter prepends the markdown frontmatter script to the module
// root of tree.
func attachFrontmatter(tree *ast.Tree, fm *Frontmatter, source []byte) error {
	src, err := fm.Module(source)
	if err != nil {
		return err
	}
	if mod := tree.Get(tree.Module); mod != nil {
		mod.Content = src + mod.Content
		return nil
	}
	tree.Module = tree.Add(ast.Node{Kind: ast.KindScript, Content: src})
	return nil
}

// isPage reports whether the first tag of the markup is <html>.
func isPage(tree *ast.Tree) bool {
	page := false
	done := false
	ast.Inspect(tree, tree.HTML, func(id, _ ast.NodeID) bool {
		if done {
			return false
		}
		n := tree.Get(id)
		switch {
		case n.Kind == ast.KindFragment:
			return true
		case n.Kind == ast.KindElement && strings.HasPrefix(n.Name, "!"):
			return false
		case n.Kind.IsTag():
			page = n.Kind == ast.KindElement && strings.EqualFold(n.Name, "html")
			done = true
		}
		return false
	})
	return page
}

const renderPage = `export async function __renderPage({request, children, props, css}) {
  const currentChild = {
    isAstroComponent: true,
    layout: typeof __layout === 'undefined' ? undefined : __layout,
    content: typeof __content === 'undefined' ? undefined : __content,
    __render,
  };

  props.content = currentChild.content;
  const childBodyResult = await currentChild.__render({...props, request}, ...(children || []));

  if (currentChild.layout) {
    return currentChild.layout({
      request,
      props: {content: currentChild.content},
      children: [childBodyResult],
      css,
    });
  }

  return childBodyResult;
};`

// Assemble lays out the final module text of a generated component.
func Assemble(gen *codegen.Result, page bool) string {
	var b strings.Builder
	b.WriteString("import { h, Fragment } from '" + wrapper.InternalImport("h.js") + "';\n")
	for _, imp := range gen.Imports {
		b.WriteString(imp + "\n")
	}
	b.WriteString("\nconst __render = async function(props, ...children) {\n")
	b.WriteString("  const Astro = { request: props.request, fetchContent: undefined };\n")
	if gen.Script != "" {
		b.WriteString(gen.Script + "\n")
	}
	b.WriteString("  return " + gen.HTML + ";\n")
	b.WriteString("};\n")
	b.WriteString("export default { isAstroComponent: true, __render };\n")
	if gen.CreateCollection != "" {
		b.WriteString("\n" + gen.CreateCollection + "\n")
	}
	if page {
		b.WriteString("\n" + renderPage + "\n")
	}
	if gen.CSS != "" {
		b.WriteString("\nexport const __css = " + script.Quote(gen.CSS) + ";\n")
	}
	return b.String()
}
