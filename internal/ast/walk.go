package ast

// Action tells Walk what to do with the node just visited.
type Action int

const (
	// Continue descends into the node's children.
	Continue Action = iota
	// SkipChildren keeps the node but does not descend. Leave is still called.
	SkipChildren
	// Replace swaps the node for Result.Node and descends into the replacement.
	Replace
	// Remove detaches the node from its parent. Leave is not called.
	Remove
)

// Result is returned by visitor callbacks.
type Result struct {
	Action Action
	Node   Node
}

var (
	Next = Result{Action: Continue}
	Skip = Result{Action: SkipChildren}
	Drop = Result{Action: Remove}
)

// ReplaceWith returns a Result that swaps the visited node for n.
func ReplaceWith(n Node) Result { return Result{Action: Replace, Node: n} }

// Visitor holds the callbacks of a Walk. Either may be nil. Leave honours
// Replace and Remove; any other action is treated as Continue.
type Visitor struct {
	Enter func(t *Tree, id, parent NodeID) Result
	Leave func(t *Tree, id, parent NodeID) Result
}

// Walk visits root depth-first on a copy of t and returns the copy with
// every Replace and Remove applied. Attributes are visited before children.
func Walk(t *Tree, root NodeID, v Visitor) *Tree {
	out := t.Clone()
	out.visit(root, NoNode, v)
	return out
}

func (t *Tree) visit(id, parent NodeID, v Visitor) (removed bool) {
	if t.Get(id) == nil {
		return false
	}

	descend := true
	if v.Enter != nil {
		r := v.Enter(t, id, parent)
		switch r.Action {
		case Remove:
			t.remove(id, parent)
			return true
		case Replace:
			t.nodes[id] = r.Node
		case SkipChildren:
			descend = false
		}
	}

	if descend {
		// Copy first: removals edit the live child lists.
		for _, child := range t.nodes[id].children() {
			t.visit(child, id, v)
		}
	}

	if v.Leave != nil {
		r := v.Leave(t, id, parent)
		switch r.Action {
		case Remove:
			t.remove(id, parent)
			return true
		case Replace:
			t.nodes[id] = r.Node
		}
	}
	return false
}

func (t *Tree) remove(id, parent NodeID) {
	if p := t.Get(parent); p != nil {
		p.detach(id)
		return
	}
	switch id {
	case t.HTML:
		t.HTML = NoNode
	case t.CSS:
		t.CSS = NoNode
	case t.Module:
		t.Module = NoNode
	}
}

// Inspect visits root depth-first without copying. fn returns false to
// skip a node's children.
func Inspect(t *Tree, root NodeID, fn func(id, parent NodeID) bool) {
	var rec func(id, parent NodeID)
	rec = func(id, parent NodeID) {
		n := t.Get(id)
		if n == nil {
			return
		}
		if !fn(id, parent) {
			return
		}
		for _, child := range n.children() {
			rec(child, id)
		}
	}
	rec(root, NoNode)
}

// Patch is a deferred edit of one node. Passes collect patches while
// inspecting a tree and apply them all at once.
type Patch struct {
	Target NodeID
	Remove bool
	// Rewrite returns the new value of Target. alloc adds nodes to the
	// patched tree.
	Rewrite func(n Node, alloc func(Node) NodeID) Node
}

// Apply returns a copy of t with patches applied in order.
func (t *Tree) Apply(patches []Patch) *Tree {
	out := t.Clone()
	var parents map[NodeID]NodeID
	for _, p := range patches {
		if out.Get(p.Target) == nil {
			continue
		}
		if p.Remove {
			if parents == nil {
				parents = out.parents()
			}
			out.remove(p.Target, parents[p.Target])
			continue
		}
		if p.Rewrite != nil {
			n := out.nodes[p.Target]
			n = p.Rewrite(n, out.Add)
			out.nodes[p.Target] = n
			parents = nil
		}
	}
	return out
}

func (t *Tree) parents() map[NodeID]NodeID {
	parents := make(map[NodeID]NodeID, len(t.nodes))
	for i := 1; i < len(t.nodes); i++ {
		for _, c := range t.nodes[i].children() {
			parents[c] = NodeID(i)
		}
	}
	return parents
}
