// Package tree provides an arena-backed rooted tree with leaf labels, the
// structural edits needed to complete and reshape phylogenies, and Newick
// reading and writing.
package tree

import (
	"errors"
	"fmt"
	"slices"
)

// NodeID is a handle to a node inside a single Tree's arena.
// Handles are never reused while the tree lives.
type NodeID int

// None is the null handle: the parent of a root or a detached node.
const None NodeID = -1

// Sentinel errors for tree construction and editing.
var (
	// ErrSyntax indicates malformed Newick input.
	ErrSyntax = errors.New("newick syntax error")
	// ErrDuplicateLabel indicates two leaves carrying the same label.
	ErrDuplicateLabel = errors.New("duplicate leaf label")
	// ErrEmpty indicates a tree with no reachable nodes.
	ErrEmpty = errors.New("empty tree")
	// ErrNotLeaf indicates an operation that needs a leaf received an internal node.
	ErrNotLeaf = errors.New("node is not a leaf")
	// ErrArity indicates a node whose child count does not fit the edit.
	ErrArity = errors.New("unexpected child count")
)

type node struct {
	label    string
	parent   NodeID
	children []NodeID
}

// Tree is a rooted, ordered tree stored as a slice of nodes. The parent
// link of each node is a non-owning back reference; the arena owns every
// node ever allocated, reachable or not.
type Tree struct {
	nodes []node
	root  NodeID
}

// New returns an empty tree with no root.
func New() *Tree {
	return &Tree{root: None}
}

// AddNode allocates a detached node with the given label.
func (t *Tree) AddNode(label string) NodeID {
	t.nodes = append(t.nodes, node{label: label, parent: None})
	return NodeID(len(t.nodes) - 1)
}

// Len returns the arena size, an upper bound on every valid handle.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the root handle, or None for an empty tree.
func (t *Tree) Root() NodeID { return t.root }

// SetRoot makes id the root. id is detached from any former parent.
func (t *Tree) SetRoot(id NodeID) {
	t.Detach(id)
	t.root = id
}

// Parent returns the parent of id, or None.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Children returns the ordered children of id. The slice is owned by the
// tree and must not be modified.
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].children }

// IsLeaf reports whether id has no children.
func (t *Tree) IsLeaf(id NodeID) bool { return len(t.nodes[id].children) == 0 }

// Label returns the label of id. Internal nodes are normally unlabeled.
func (t *Tree) Label(id NodeID) string { return t.nodes[id].label }

// Valid reports whether id is a handle inside this tree's arena.
func (t *Tree) Valid(id NodeID) bool { return id >= 0 && int(id) < len(t.nodes) }

// AddChild appends child to parent's children, detaching child first.
func (t *Tree) AddChild(parent, child NodeID) {
	t.Detach(child)
	t.nodes[parent].children = append(t.nodes[parent].children, child)
	t.nodes[child].parent = parent
}

// Detach unlinks id from its parent. Detaching the root empties the tree.
func (t *Tree) Detach(id NodeID) {
	p := t.nodes[id].parent
	if p == None {
		if t.root == id {
			t.root = None
		}
		return
	}
	kids := t.nodes[p].children
	if i := slices.Index(kids, id); i >= 0 {
		t.nodes[p].children = slices.Delete(kids, i, i+1)
	}
	t.nodes[id].parent = None
}

// ReplaceChild puts repl into the position old occupies, either a slot in
// old's parent or the root, and leaves old detached.
func (t *Tree) ReplaceChild(old, repl NodeID) {
	t.Detach(repl)
	p := t.nodes[old].parent
	if p == None {
		if t.root == old {
			t.root = repl
		}
		return
	}
	kids := t.nodes[p].children
	kids[slices.Index(kids, old)] = repl
	t.nodes[repl].parent = p
	t.nodes[old].parent = None
}

// Splice removes a node that has exactly one child, promoting the child
// into its place. Splicing the root makes the child the new root.
func (t *Tree) Splice(id NodeID) error {
	kids := t.nodes[id].children
	if len(kids) != 1 {
		return fmt.Errorf("%w: splice node %d with %d children", ErrArity, id, len(kids))
	}
	child := kids[0]
	t.nodes[id].children = nil
	t.nodes[child].parent = None
	t.ReplaceChild(id, child)
	return nil
}

// Join allocates an unlabeled node whose children are a then b.
func (t *Tree) Join(a, b NodeID) NodeID {
	n := t.AddNode("")
	t.AddChild(n, a)
	t.AddChild(n, b)
	return n
}

// Graft deep-copies the subtree of src rooted at id into t and returns the
// detached copy.
func (t *Tree) Graft(src *Tree, id NodeID) NodeID {
	cp := t.AddNode(src.Label(id))
	for _, c := range src.Children(id) {
		t.AddChild(cp, t.Graft(src, c))
	}
	return cp
}

// Clone returns a compacted copy of the reachable part of t, numbered in
// pre-order. The root of the copy is always handle 0.
func (t *Tree) Clone() *Tree {
	return t.CloneSubtree(t.root)
}

// CloneSubtree returns a compacted copy of the subtree rooted at id.
func (t *Tree) CloneSubtree(id NodeID) *Tree {
	out := New()
	if id == None {
		return out
	}
	out.nodes = make([]node, 0, len(t.nodes))
	out.root = out.Graft(t, id)
	return out
}

// PreOrder returns the reachable nodes, parents before children.
func (t *Tree) PreOrder() []NodeID { return t.PreOrderFrom(t.root) }

// PreOrderFrom returns the subtree of id in pre-order.
func (t *Tree) PreOrderFrom(id NodeID) []NodeID {
	if id == None {
		return nil
	}
	var out []NodeID
	stack := []NodeID{id}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, v)
		kids := t.nodes[v].children
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// PostOrder returns the reachable nodes, children before parents and
// siblings left to right.
func (t *Tree) PostOrder() []NodeID { return t.PostOrderFrom(t.root) }

// PostOrderFrom returns the subtree of id in post-order.
func (t *Tree) PostOrderFrom(id NodeID) []NodeID {
	if id == None {
		return nil
	}
	type frame struct {
		id   NodeID
		next int
	}
	var out []NodeID
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := t.nodes[top.id].children
		if top.next < len(kids) {
			c := kids[top.next]
			top.next++
			stack = append(stack, frame{id: c})
			continue
		}
		out = append(out, top.id)
		stack = stack[:len(stack)-1]
	}
	return out
}

// Leaves returns the reachable leaves in pre-order.
func (t *Tree) Leaves() []NodeID {
	var out []NodeID
	for _, v := range t.PreOrder() {
		if t.IsLeaf(v) {
			out = append(out, v)
		}
	}
	return out
}

// LeafLabels returns the labels of the reachable leaves in pre-order.
func (t *Tree) LeafLabels() []string {
	leaves := t.Leaves()
	out := make([]string, len(leaves))
	for i, v := range leaves {
		out[i] = t.Label(v)
	}
	return out
}

// LeafCount returns the number of reachable leaves.
func (t *Tree) LeafCount() int { return len(t.Leaves()) }

// LeafIndex maps every reachable leaf label to its handle. When labels
// repeat the last leaf in pre-order wins.
func (t *Tree) LeafIndex() map[string]NodeID {
	idx := make(map[string]NodeID)
	for _, v := range t.Leaves() {
		idx[t.Label(v)] = v
	}
	return idx
}

// LeafByLabel finds the reachable leaf with the given label.
func (t *Tree) LeafByLabel(label string) (NodeID, bool) {
	for _, v := range t.Leaves() {
		if t.Label(v) == label {
			return v, true
		}
	}
	return None, false
}

// CheckLabels returns ErrDuplicateLabel if two reachable leaves share a label.
func (t *Tree) CheckLabels() error {
	seen := make(map[string]struct{})
	for _, v := range t.Leaves() {
		l := t.Label(v)
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// SubtreeLeafCounts returns, for every handle in the arena, the number of
// leaves below it. Unreachable handles count zero.
func (t *Tree) SubtreeLeafCounts() []int {
	counts := make([]int, len(t.nodes))
	for _, v := range t.PostOrder() {
		kids := t.nodes[v].children
		if len(kids) == 0 {
			counts[v] = 1
			continue
		}
		for _, c := range kids {
			counts[v] += counts[c]
		}
	}
	return counts
}

// IsBinary reports whether every reachable node has zero or two children.
func (t *Tree) IsBinary() bool {
	for _, v := range t.PreOrder() {
		if n := len(t.nodes[v].children); n != 0 && n != 2 {
			return false
		}
	}
	return true
}

// Binarize rewrites t into a strictly binary tree. A node with k > 2
// children c0..c(k-1) becomes the caterpillar ((((c0,c1),c2),...),c(k-1));
// unary internal nodes are spliced out. It reports whether anything changed.
func (t *Tree) Binarize() bool {
	changed := false
	for _, v := range t.PostOrder() {
		kids := slices.Clone(t.nodes[v].children)
		switch {
		case len(kids) == 1:
			_ = t.Splice(v)
			changed = true
		case len(kids) > 2:
			for _, c := range kids {
				t.Detach(c)
			}
			acc := t.Join(kids[0], kids[1])
			for _, c := range kids[2 : len(kids)-1] {
				acc = t.Join(acc, c)
			}
			t.AddChild(v, acc)
			t.AddChild(v, kids[len(kids)-1])
			changed = true
		}
	}
	return changed
}

// Prune returns a copy of t restricted to the leaves for which keep returns
// true. Internal nodes left with one child are spliced out. The result is
// empty when no leaf is kept.
func (t *Tree) Prune(keep func(label string) bool) *Tree {
	out := New()
	if t.root == None {
		return out
	}
	var walk func(v NodeID) NodeID
	walk = func(v NodeID) NodeID {
		if t.IsLeaf(v) {
			if !keep(t.Label(v)) {
				return None
			}
			return out.AddNode(t.Label(v))
		}
		var kept []NodeID
		for _, c := range t.Children(v) {
			if cp := walk(c); cp != None {
				kept = append(kept, cp)
			}
		}
		switch len(kept) {
		case 0:
			return None
		case 1:
			return kept[0]
		}
		n := out.AddNode(t.Label(v))
		for _, c := range kept {
			out.AddChild(n, c)
		}
		return n
	}
	if r := walk(t.root); r != None {
		out.root = r
	}
	return out.Clone()
}

// Outgroup returns a copy of t rerooted on the pendant edge of leaf: the
// new root has the leaf as its first child and the rest of the tree,
// read as unrooted, as its second. A root bifurcation in t is suppressed
// first; a root with three or more children is an ordinary vertex.
func (t *Tree) Outgroup(leaf NodeID) (*Tree, error) {
	if t.root == None {
		return nil, ErrEmpty
	}
	if !t.IsLeaf(leaf) {
		return nil, fmt.Errorf("%w: %d", ErrNotLeaf, leaf)
	}
	adj := make(map[NodeID][]NodeID)
	link := func(a, b NodeID) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	root := t.root
	rootKids := t.Children(root)
	skipRoot := len(rootKids) == 2
	for _, v := range t.PreOrder() {
		p := t.Parent(v)
		if p == None || (skipRoot && p == root) {
			continue
		}
		link(p, v)
	}
	if skipRoot {
		link(rootKids[0], rootKids[1])
	}

	out := New()
	var build func(v, from NodeID) NodeID
	build = func(v, from NodeID) NodeID {
		n := out.AddNode(t.Label(v))
		for _, w := range adj[v] {
			if w != from {
				out.AddChild(n, build(w, v))
			}
		}
		return n
	}
	nbrs := adj[leaf]
	if len(nbrs) == 0 {
		out.root = out.AddNode(t.Label(leaf))
		return out, nil
	}
	out.root = out.Join(out.AddNode(t.Label(leaf)), build(nbrs[0], leaf))
	return out.Clone(), nil
}

// Unroot dissolves a root bifurcation: the first internal child of the root
// is removed and its children take its place, leaving a root of degree
// three. Roots with other shapes are left alone.
func (t *Tree) Unroot() {
	if t.root == None {
		return
	}
	kids := t.nodes[t.root].children
	if len(kids) != 2 {
		return
	}
	for i, c := range kids {
		if t.IsLeaf(c) {
			continue
		}
		grand := t.nodes[c].children
		for _, g := range grand {
			t.nodes[g].parent = t.root
		}
		merged := slices.Concat(kids[:i], grand, kids[i+1:])
		t.nodes[c].children = nil
		t.nodes[c].parent = None
		t.nodes[t.root].children = merged
		return
	}
}

// String renders t in Newick notation.
func (t *Tree) String() string { return t.Newick() }
