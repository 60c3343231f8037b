package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "html": {"type":"Fragment","start":0,"end":40,"children":[
    {"type":"Element","name":"div","attributes":[
      {"type":"Attribute","name":"class","value":[{"type":"Text","data":"a b","raw":"a b"}]},
      {"type":"Attribute","name":"hidden","value":true}
    ],"children":[
      {"type":"Text","data":"hi"},
      {"type":"MustacheTag","expression":{"type":"Expression","codeStart":"name","codeEnd":""}}
    ]},
    {"type":"Style","attributes":[],"content":{"styles":"div{color:red}"}}
  ]},
  "css": null,
  "module": {"type":"Script","content":"export let name;"}
}`

func TestDecode(t *testing.T) {
	tree, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	root := tree.Get(tree.HTML)
	require.NotNil(t, root)
	assert.Equal(t, KindFragment, root.Kind)
	require.Len(t, root.Children, 2)

	div := root.Children[0]
	assert.Equal(t, "div", tree.Get(div).Name)
	cls, ok := tree.AttrText(div, "class")
	assert.True(t, ok)
	assert.Equal(t, "a b", cls)
	assert.True(t, tree.Get(tree.Attr(div, "hidden")).Boolean)

	mustache := tree.Get(div).Children[1]
	assert.Equal(t, "name", tree.ExpressionCode(mustache))

	style := tree.Get(root.Children[1])
	assert.Equal(t, "div{color:red}", style.Content)

	assert.False(t, tree.CSS.IsValid())
	assert.Equal(t, "export let name;", tree.Get(tree.Module).Content)
}

func TestDecodeCodeChunks(t *testing.T) {
	tree, err := Decode([]byte(`{"html":{"type":"Fragment","children":[
	  {"type":"Expression","codeChunks":["ok ? ", " : ", ""],"children":[
	    {"type":"InlineComponent","name":"A"},
	    {"type":"InlineComponent","name":"B"}
	  ]},
	  {"type":"Expression","codeStart":"list.map(i => ","codeEnd":")"}
	]}}`))
	require.NoError(t, err)

	root := tree.Get(tree.HTML)
	require.Len(t, root.Children, 2)
	ternary := tree.Get(root.Children[0])
	assert.Equal(t, []string{"ok ? ", " : ", ""}, ternary.CodeChunks)
	assert.Len(t, ternary.Children, 2)
	assert.Equal(t, "ok ?  : ", tree.ExpressionCode(root.Children[0]))

	legacy := tree.Get(root.Children[1])
	assert.Equal(t, []string{"list.map(i => ", ")"}, legacy.CodeChunks)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode([]byte(`{"html": [`))
	assert.Error(t, err)
}

func TestWalkRemoveDoesNotTouchInput(t *testing.T) {
	tree, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	out := Walk(tree, tree.HTML, Visitor{
		Enter: func(t *Tree, id, parent NodeID) Result {
			if t.Get(id).Kind == KindStyle {
				return Drop
			}
			return Next
		},
	})

	assert.Len(t, out.Get(out.HTML).Children, 1)
	assert.Len(t, tree.Get(tree.HTML).Children, 2)
}

func TestWalkOrderAndSkip(t *testing.T) {
	b := NewBuilder()
	inner := b.Element("span", nil, b.Text("x"))
	outer := b.Element("p", []NodeID{b.Attr("id", b.Text("a"))}, inner)
	tree := b.Build(b.Fragment(outer), NoNode, NoNode)

	var entered, left []Kind
	Walk(tree, tree.HTML, Visitor{
		Enter: func(t *Tree, id, _ NodeID) Result {
			entered = append(entered, t.Get(id).Kind)
			if t.Get(id).Name == "span" {
				return Skip
			}
			return Next
		},
		Leave: func(t *Tree, id, _ NodeID) Result {
			left = append(left, t.Get(id).Kind)
			return Next
		},
	})

	assert.Equal(t, []Kind{KindFragment, KindElement, KindAttribute, KindText, KindElement}, entered)
	assert.Equal(t, []Kind{KindText, KindAttribute, KindElement, KindElement, KindFragment}, left)
}

func TestWalkReplace(t *testing.T) {
	b := NewBuilder()
	tree := b.Build(b.Fragment(b.Text("old")), NoNode, NoNode)

	out := Walk(tree, tree.HTML, Visitor{
		Enter: func(t *Tree, id, _ NodeID) Result {
			if n := t.Get(id); n.Kind == KindText {
				return ReplaceWith(Node{Kind: KindText, Data: "new"})
			}
			return Next
		},
	})

	child := out.Get(out.HTML).Children[0]
	assert.Equal(t, "new", out.Get(child).Text())
	assert.Equal(t, "old", tree.Get(child).Text())
}

func TestApplyPatches(t *testing.T) {
	b := NewBuilder()
	text := b.Text("a")
	comment := b.Comment("c")
	div := b.Element("div", nil, text, comment)
	tree := b.Build(b.Fragment(div), NoNode, NoNode)

	out := tree.Apply([]Patch{
		{Target: comment, Remove: true},
		{Target: div, Rewrite: func(n Node, alloc func(Node) NodeID) Node {
			n.Attributes = append(n.Attributes, alloc(Node{Kind: KindAttribute, Name: "class", Boolean: true}))
			return n
		}},
	})

	assert.Equal(t, []NodeID{text}, out.Get(div).Children)
	assert.True(t, out.Attr(div, "class").IsValid())
	assert.False(t, tree.Attr(div, "class").IsValid())
	assert.Len(t, tree.Get(div).Children, 2)
	assert.Equal(t, tree.Len()+1, out.Len())
}

func TestInspect(t *testing.T) {
	tree, err := Decode([]byte(sampleJSON))
	require.NoError(t, err)

	count := 0
	Inspect(tree, tree.HTML, func(id, _ NodeID) bool {
		count++
		return tree.Get(id).Kind != KindElement
	})
	// Fragment, div (children skipped), Style
	assert.Equal(t, 3, count)
}

func TestTextPrefersRaw(t *testing.T) {
	n := Node{Kind: KindText, Data: "&amp;", Raw: "&", HasRaw: true}
	assert.Equal(t, "&", n.Text())
	assert.True(t, KindSlot.IsTag())
	assert.False(t, KindText.IsTag())
}
