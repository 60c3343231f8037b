// Package ast holds the template tree produced by the component parser.
//
// Nodes live in a slice-backed arena and refer to each other by NodeID.
// Passes never mutate a tree in place: Walk and Apply return a new Tree.
package ast

import (
	"fmt"
	"strings"
)

// Kind tags the variant of a Node.
type Kind string

const (
	KindFragment        Kind = "Fragment"
	KindText            Kind = "Text"
	KindExpression      Kind = "Expression"
	KindMustacheTag     Kind = "MustacheTag"
	KindElement         Kind = "Element"
	KindInlineComponent Kind = "InlineComponent"
	KindSlot            Kind = "Slot"
	KindHead            Kind = "Head"
	KindBody            Kind = "Body"
	KindTitle           Kind = "Title"
	KindStyle           Kind = "Style"
	KindScript          Kind = "Script"
	KindComment         Kind = "Comment"
	KindAttribute       Kind = "Attribute"
)

// IsTag reports whether nodes of this kind render as an h() call.
func (k Kind) IsTag() bool {
	switch k {
	case KindElement, KindInlineComponent, KindSlot, KindHead, KindBody, KindTitle:
		return true
	}
	return false
}

// NodeID indexes a Node in its Tree. The zero value means "no node".
type NodeID uint32

// NoNode is the sentinel ID.
const NoNode NodeID = 0

// IsValid reports whether id may refer to a node.
func (id NodeID) IsValid() bool { return id != NoNode }

// Node is one template node. Which fields are meaningful depends on Kind.
type Node struct {
	Kind  Kind
	Start int
	End   int

	// Name is the tag name for tag kinds and the attribute name for Attribute.
	Name string

	// Data holds Text and Comment contents. Raw, when set, is the undecoded
	// source text of a Text node and wins over Data.
	Data   string
	Raw    string
	HasRaw bool

	// CodeChunks is the code of an Expression. Markup child i sits between
	// chunk i and chunk i+1.
	CodeChunks []string

	// Content is the body of a Style or Script node.
	Content string

	// Boolean marks an attribute written without a value.
	Boolean bool
	// Value holds the Text and MustacheTag fragments of an attribute value.
	Value []NodeID

	Attributes []NodeID
	Children   []NodeID

	// Expression is the Expression node wrapped by a MustacheTag.
	Expression NodeID
}

// Text returns the textual value of a Text node.
func (n *Node) Text() string {
	if n.HasRaw {
		return n.Raw
	}
	return n.Data
}

// Tree is an arena of nodes with three roots.
type Tree struct {
	nodes []Node

	HTML   NodeID
	CSS    NodeID
	Module NodeID
}

// NewTree creates an empty tree with an optional capacity hint.
func NewTree(capacity int) *Tree {
	if capacity <= 0 {
		capacity = 64
	}
	return &Tree{nodes: make([]Node, 1, capacity+1)} // index 0 reserved for NoNode
}

// Add appends n to the arena and returns its ID.
func (t *Tree) Add(n Node) NodeID {
	if uint64(len(t.nodes)) >= uint64(^uint32(0)) {
		panic(fmt.Errorf("ast arena overflow"))
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	return id
}

// Get returns the node pointer or nil if id is invalid.
func (t *Tree) Get(id NodeID) *Node {
	if !id.IsValid() || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Len reports total number of nodes excluding the sentinel.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		nodes:  make([]Node, len(t.nodes), cap(t.nodes)),
		HTML:   t.HTML,
		CSS:    t.CSS,
		Module: t.Module,
	}
	for i, n := range t.nodes {
		n.Value = cloneIDs(n.Value)
		n.Attributes = cloneIDs(n.Attributes)
		n.Children = cloneIDs(n.Children)
		out.nodes[i] = n
	}
	return out
}

func cloneIDs(ids []NodeID) []NodeID {
	if ids == nil {
		return nil
	}
	out := make([]NodeID, len(ids))
	copy(out, ids)
	return out
}

// Attr returns the attribute of id named name, or NoNode.
func (t *Tree) Attr(id NodeID, name string) NodeID {
	n := t.Get(id)
	if n == nil {
		return NoNode
	}
	for _, a := range n.Attributes {
		if an := t.Get(a); an != nil && an.Name == name {
			return a
		}
	}
	return NoNode
}

// AttrText returns the static text of an attribute. ok is false when the
// attribute is missing or contains an expression.
func (t *Tree) AttrText(id NodeID, name string) (value string, ok bool) {
	a := t.Get(t.Attr(id, name))
	if a == nil {
		return "", false
	}
	if a.Boolean {
		return "", true
	}
	for _, v := range a.Value {
		vn := t.Get(v)
		if vn == nil || vn.Kind != KindText {
			return "", false
		}
		value += vn.Text()
	}
	return value, true
}

// ExpressionCode returns the source of a MustacheTag or Expression node.
func (t *Tree) ExpressionCode(id NodeID) string {
	n := t.Get(id)
	if n == nil {
		return ""
	}
	if n.Kind == KindMustacheTag {
		return t.ExpressionCode(n.Expression)
	}
	return strings.Join(n.CodeChunks, "")
}

// children returns child IDs in walk order.
func (n *Node) children() []NodeID {
	var out []NodeID
	out = append(out, n.Attributes...)
	out = append(out, n.Value...)
	if n.Expression.IsValid() {
		out = append(out, n.Expression)
	}
	out = append(out, n.Children...)
	return out
}

// detach removes child from whichever list of n holds it.
func (n *Node) detach(child NodeID) bool {
	for _, list := range []*[]NodeID{&n.Attributes, &n.Value, &n.Children} {
		for i, id := range *list {
			if id == child {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return true
			}
		}
	}
	if n.Expression == child {
		n.Expression = NoNode
		return true
	}
	return false
}
