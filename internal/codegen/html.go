package codegen

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/conneroisu/astral/internal/ast"
	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/script"
	"github.com/conneroisu/astral/internal/wrapper"
)

// frame is an open h() call collecting its children.
type frame struct {
	head     string
	slot     bool
	children []string
}

// fragment wraps children in the single top-level Fragment.
func fragment(children []string) string {
	if len(children) == 0 {
		return "h(Fragment, null)"
	}
	return "h(Fragment, null, " + strings.Join(children, ", ") + ")"
}

func (f *frame) close() string {
	if f.slot {
		if len(f.children) == 0 {
			return "children"
		}
		return "(children.length ? children : [" + strings.Join(f.children, ", ") + "])"
	}
	if len(f.children) == 0 {
		return f.head + ")"
	}
	return f.head + ", " + strings.Join(f.children, ", ") + ")"
}

// falsyExpressions render nothing and are left out of the tree.
var falsyExpressions = map[string]bool{
	"false":     true,
	"null":      true,
	"undefined": true,
	"void 0":    true,
}

// children compiles root into the list of render-tree children it yields.
func (g *generator) children(ctx context.Context, tree *ast.Tree, root ast.NodeID) ([]string, error) {
	if !root.IsValid() {
		return nil, nil
	}

	stack := []*frame{{}}
	var failed error
	emit := func(s string) {
		top := stack[len(stack)-1]
		top.children = append(top.children, s)
	}

	ast.Walk(tree, root, ast.Visitor{
		Enter: func(t *ast.Tree, id, _ ast.NodeID) ast.Result {
			if failed != nil {
				return ast.Skip
			}
			n := t.Get(id)
			switch n.Kind {
			case ast.KindFragment, ast.KindMustacheTag:
				return ast.Next

			case ast.KindComment, ast.KindAttribute:
				return ast.Skip

			case ast.KindStyle:
				g.css = append(g.css, n.Content)
				return ast.Drop

			case ast.KindText:
				if text := n.Text(); strings.TrimSpace(text) != "" {
					emit(script.Quote(text))
				}
				return ast.Skip

			case ast.KindExpression:
				code, err := g.expression(ctx, t, id)
				if err != nil {
					failed = err
					return ast.Skip
				}
				if code != "" && !falsyExpressions[code] {
					emit("(" + code + ")")
				}
				return ast.Skip

			case ast.KindScript:
				attrs, err := g.attributes(t, n.Attributes)
				if err != nil {
					failed = err
					return ast.Skip
				}
				s := `h("script", ` + attrs
				if n.Content != "" {
					s += ", " + script.Quote(n.Content)
				}
				emit(s + ")")
				return ast.Skip

			case ast.KindElement, ast.KindInlineComponent, ast.KindSlot, ast.KindHead, ast.KindBody, ast.KindTitle:
				if n.Kind == ast.KindElement && strings.EqualFold(n.Name, "style") {
					g.css = append(g.css, textContent(t, n))
					return ast.Drop
				}
				f, err := g.open(ctx, t, id)
				if err != nil {
					failed = err
					return ast.Skip
				}
				stack = append(stack, f)
				return ast.Next
			}

			failed = errors.NewCompileError(errors.ErrCodeInternalError,
				fmt.Sprintf("Unexpected node type: %s", n.Kind)).WithLocation(g.opts.FileID, 0, 0)
			return ast.Skip
		},
		Leave: func(t *ast.Tree, id, _ ast.NodeID) ast.Result {
			if !t.Get(id).Kind.IsTag() || len(stack) < 2 {
				return ast.Next
			}
			if failed != nil {
				return ast.Next
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			emit(f.close())
			return ast.Next
		},
	})

	if failed != nil {
		return nil, failed
	}
	return stack[0].children, nil
}

// open starts the h() call for a tag node.
func (g *generator) open(ctx context.Context, t *ast.Tree, id ast.NodeID) (*frame, error) {
	n := t.Get(id)
	if n.Kind == ast.KindSlot {
		return &frame{slot: true}, nil
	}

	name := n.Name
	if name == "" {
		name = strings.ToLower(string(n.Kind))
	}

	attrs, err := g.attributes(t, n.Attributes)
	if err != nil {
		return nil, err
	}

	if n.Kind != ast.KindInlineComponent && !isComponentName(name) {
		return &frame{head: "h(" + script.Quote(name) + ", " + attrs}, nil
	}

	local, hydration, err := wrapper.SplitTagName(name)
	if err != nil {
		if ae, ok := err.(*errors.AstralError); ok {
			ae.WithLocation(g.opts.FileID, 0, 0)
		}
		return nil, err
	}
	c, ok := g.lookupComponent(local)
	if !ok {
		return nil, errors.ErrUnknownComponent(local, g.opts.FileID)
	}
	if hydration != wrapper.HydrationNone {
		if err := g.acquire(ctx, c.Framework); err != nil {
			return nil, err
		}
	}
	w, err := g.resolver.Resolve(c, hydration)
	if err != nil {
		return nil, err
	}
	g.addImport(w.Import)
	return &frame{head: "h(" + w.Expr + ", " + attrs}, nil
}

// lookupComponent finds the import behind a tag name. Ui.Button names the
// Button member of the namespace or default import Ui.
func (g *generator) lookupComponent(name string) (wrapper.Component, bool) {
	if c, ok := g.components[name]; ok {
		return c, true
	}
	ns, member, dotted := strings.Cut(name, ".")
	if !dotted {
		return wrapper.Component{}, false
	}
	c, ok := g.components[ns]
	if !ok {
		return wrapper.Component{}, false
	}
	return c.Member(member), true
}

func isComponentName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// attributes renders an attribute object literal, or null.
func (g *generator) attributes(t *ast.Tree, ids []ast.NodeID) (string, error) {
	if len(ids) == 0 {
		return "null", nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		a := t.Get(id)
		v, err := g.attributeValue(t, a)
		if err != nil {
			return "", err
		}
		parts = append(parts, script.Quote(a.Name)+":"+v)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func (g *generator) attributeValue(t *ast.Tree, a *ast.Node) (string, error) {
	if a.Boolean {
		return "true", nil
	}
	if len(a.Value) == 0 {
		return `""`, nil
	}

	parts := make([]string, 0, len(a.Value))
	for _, v := range a.Value {
		vn := t.Get(v)
		switch vn.Kind {
		case ast.KindText:
			parts = append(parts, script.Quote(vn.Text()))
		case ast.KindMustacheTag, ast.KindExpression:
			code, err := script.CompileExpression(t.ExpressionCode(v), g.opts.FileID, 0)
			if err != nil {
				return "", err
			}
			if code == "" {
				code = "undefined"
			}
			parts = append(parts, "("+code+")")
		default:
			return "", errors.NewCompileError(errors.ErrCodeInternalError,
				fmt.Sprintf("UNKNOWN attribute value: %s", vn.Kind)).WithLocation(g.opts.FileID, 0, 0)
		}
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, "+") + ")", nil
}

// expression compiles an Expression node. Each markup child is spliced
// after its code chunk. A tree with fewer chunk boundaries than children
// has all children merged into one Fragment after the first chunk.
func (g *generator) expression(ctx context.Context, t *ast.Tree, id ast.NodeID) (string, error) {
	n := t.Get(id)
	nested := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		c, err := g.children(ctx, t, child)
		if err != nil {
			return "", err
		}
		switch len(c) {
		case 0:
			nested = append(nested, "")
		case 1:
			nested = append(nested, c[0])
		default:
			nested = append(nested, fragment(c))
		}
	}

	chunks := n.CodeChunks
	var raw strings.Builder
	if len(chunks) == len(nested)+1 {
		for i, chunk := range chunks {
			raw.WriteString(chunk)
			if i < len(nested) {
				if nested[i] == "" {
					raw.WriteString("null")
				} else {
					raw.WriteString(nested[i])
				}
			}
		}
	} else {
		var kept []string
		for _, c := range nested {
			if c != "" {
				kept = append(kept, c)
			}
		}
		if len(chunks) > 0 {
			raw.WriteString(chunks[0])
		}
		switch len(kept) {
		case 0:
		case 1:
			raw.WriteString(kept[0])
		default:
			raw.WriteString(fragment(kept))
		}
		if len(chunks) > 1 {
			raw.WriteString(strings.Join(chunks[1:], ""))
		}
	}
	return script.CompileExpression(raw.String(), g.opts.FileID, 0)
}

func textContent(t *ast.Tree, n *ast.Node) string {
	var parts []string
	for _, c := range n.Children {
		if cn := t.Get(c); cn != nil && cn.Kind == ast.KindText {
			parts = append(parts, cn.Text())
		}
	}
	return strings.Join(parts, "\n")
}
