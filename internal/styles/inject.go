package styles

import (
	"strings"

	"github.com/conneroisu/astral/internal/ast"
)

// HasClass reports whether the space separated list contains class.
func HasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

// classPatch appends scoped to the class attribute of el. ok is false when
// the class is already present.
func classPatch(t *ast.Tree, el ast.NodeID, scoped string) (ast.Patch, bool) {
	attr := t.Attr(el, "class")
	if !attr.IsValid() {
		return ast.Patch{
			Target: el,
			Rewrite: func(n ast.Node, alloc func(ast.Node) ast.NodeID) ast.Node {
				text := alloc(ast.Node{Kind: ast.KindText, Data: scoped, Raw: scoped, HasRaw: true})
				n.Attributes = append(n.Attributes, alloc(ast.Node{Kind: ast.KindAttribute, Name: "class", Value: []ast.NodeID{text}}))
				return n
			},
		}, true
	}

	an := t.Get(attr)
	if an.Boolean || len(an.Value) == 0 {
		return ast.Patch{
			Target: attr,
			Rewrite: func(n ast.Node, alloc func(ast.Node) ast.NodeID) ast.Node {
				n.Boolean = false
				n.Value = []ast.NodeID{alloc(ast.Node{Kind: ast.KindText, Data: scoped, Raw: scoped, HasRaw: true})}
				return n
			},
		}, true
	}

	last := an.Value[len(an.Value)-1]
	ln := t.Get(last)
	switch ln.Kind {
	case ast.KindText:
		if HasClass(ln.Text(), scoped) {
			return ast.Patch{}, false
		}
		return ast.Patch{
			Target: last,
			Rewrite: func(n ast.Node, _ func(ast.Node) ast.NodeID) ast.Node {
				n.Data += " " + scoped
				if n.HasRaw {
					n.Raw += " " + scoped
				}
				return n
			},
		}, true

	case ast.KindMustacheTag:
		expr := ln.Expression
		suffix := "' " + scoped + "'"
		if strings.Contains(t.ExpressionCode(expr), suffix) {
			return ast.Patch{}, false
		}
		return ast.Patch{
			Target: expr,
			Rewrite: func(n ast.Node, _ func(ast.Node) ast.NodeID) ast.Node {
				n.CodeChunks = appendClass(n.CodeChunks, suffix)
				return n
			},
		}, true
	}
	return ast.Patch{}, false
}

// appendClass wraps the expression code in parentheses and concatenates
// suffix, keeping the chunk boundaries of any markup children.
func appendClass(chunks []string, suffix string) []string {
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	out := make([]string, len(chunks))
	copy(out, chunks)
	out[0] = "(" + out[0]
	out[len(out)-1] += ") + " + suffix
	return out
}
