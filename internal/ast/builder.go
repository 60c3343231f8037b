package ast

// Builder constructs trees node by node. Children must be added before the
// nodes that hold them.
type Builder struct {
	*Tree
}

// NewBuilder returns a Builder over an empty tree.
func NewBuilder() *Builder {
	return &Builder{Tree: NewTree(0)}
}

func (b *Builder) Fragment(children ...NodeID) NodeID {
	return b.Add(Node{Kind: KindFragment, Children: children})
}

func (b *Builder) Text(s string) NodeID {
	return b.Add(Node{Kind: KindText, Data: s})
}

func (b *Builder) Comment(s string) NodeID {
	return b.Add(Node{Kind: KindComment, Data: s})
}

// Expression adds an Expression node; children are spliced between
// codeStart and codeEnd when compiled.
func (b *Builder) Expression(codeStart, codeEnd string, children ...NodeID) NodeID {
	return b.Add(Node{Kind: KindExpression, CodeChunks: []string{codeStart, codeEnd}, Children: children})
}

// ExpressionChunks adds an Expression whose children interleave with
// chunks, one child after each chunk but the last.
func (b *Builder) ExpressionChunks(chunks []string, children ...NodeID) NodeID {
	return b.Add(Node{Kind: KindExpression, CodeChunks: chunks, Children: children})
}

// Mustache adds a `{code}` tag.
func (b *Builder) Mustache(code string) NodeID {
	return b.Add(Node{Kind: KindMustacheTag, Expression: b.Expression(code, "")})
}

// Attr adds an attribute whose value is the given Text/MustacheTag parts.
func (b *Builder) Attr(name string, parts ...NodeID) NodeID {
	return b.Add(Node{Kind: KindAttribute, Name: name, Value: parts})
}

// BoolAttr adds a valueless attribute.
func (b *Builder) BoolAttr(name string) NodeID {
	return b.Add(Node{Kind: KindAttribute, Name: name, Boolean: true})
}

// Tag adds a node of a tag kind.
func (b *Builder) Tag(kind Kind, name string, attrs []NodeID, children ...NodeID) NodeID {
	return b.Add(Node{Kind: kind, Name: name, Attributes: attrs, Children: children})
}

func (b *Builder) Element(name string, attrs []NodeID, children ...NodeID) NodeID {
	return b.Tag(KindElement, name, attrs, children...)
}

func (b *Builder) Component(name string, attrs []NodeID, children ...NodeID) NodeID {
	return b.Tag(KindInlineComponent, name, attrs, children...)
}

func (b *Builder) Style(content string, attrs ...NodeID) NodeID {
	return b.Add(Node{Kind: KindStyle, Name: "style", Content: content, Attributes: attrs})
}

func (b *Builder) Script(content string) NodeID {
	return b.Add(Node{Kind: KindScript, Content: content})
}

// Build sets the roots and returns the tree.
func (b *Builder) Build(html, css, module NodeID) *Tree {
	b.HTML, b.CSS, b.Module = html, css, module
	return b.Tree
}
