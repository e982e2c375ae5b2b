package rfplus

import (
	"fmt"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// Color classifies a node by the leaf sets its subtree draws from.
type Color uint8

const (
	// Shared marks leaves present in both inputs and internal nodes whose
	// children are both Shared.
	Shared Color = iota
	// ExclusiveA marks leaves present only in the first input, and internal
	// nodes whose children are both ExclusiveA.
	ExclusiveA
	// ExclusiveB marks leaves present only in the second input, and internal
	// nodes whose children are both ExclusiveB.
	ExclusiveB
	// Mixed marks every other internal node.
	Mixed
)

// String returns the color name.
func (c Color) String() string {
	switch c {
	case Shared:
		return "shared"
	case ExclusiveA:
		return "exclusive-a"
	case ExclusiveB:
		return "exclusive-b"
	case Mixed:
		return "mixed"
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

// Exclusive reports whether c is ExclusiveA or ExclusiveB.
func (c Color) Exclusive() bool { return c == ExclusiveA || c == ExclusiveB }

// anchored reports whether a node of color c has an image in the other tree.
func (c Color) anchored() bool { return c == Shared || c == Mixed }

// coloring holds per-node colors and boundary marks for one tree, indexed
// by handle.
type coloring struct {
	color []Color
	mark  []bool
}

// maximal reports whether v roots a maximal subtree of color c.
func (k *coloring) maximal(t *tree.Tree, v tree.NodeID, c Color) bool {
	if k.color[v] != c {
		return false
	}
	p := t.Parent(v)
	return p == tree.None || k.color[p] != c
}

// colorTree colors t bottom-up. classify decides the color of each leaf.
func colorTree(t *tree.Tree, classify func(label string) Color) (*coloring, error) {
	k := &coloring{
		color: make([]Color, t.Len()),
		mark:  make([]bool, t.Len()),
	}
	for _, v := range t.PostOrder() {
		kids := t.Children(v)
		switch len(kids) {
		case 0:
			k.color[v] = classify(t.Label(v))
		case 2:
			k.color[v], k.mark[v] = combine(k.color[kids[0]], k.color[kids[1]])
		default:
			return nil, fmt.Errorf("%w: node %d has %d children", ErrStructuralViolation, v, len(kids))
		}
	}
	return k, nil
}

// combine derives an internal node's color from its children. The node is
// a graft boundary when exactly one child is exclusive and the other is
// anchored.
func combine(l, r Color) (Color, bool) {
	if l == r && l != Mixed {
		return l, false
	}
	return Mixed, l.Exclusive() != r.Exclusive()
}

// unionClassifier colors leaves of a completed tree by which input they
// came from.
func unionClassifier(onlyA, onlyB map[string]struct{}) func(string) Color {
	return func(label string) Color {
		if _, ok := onlyA[label]; ok {
			return ExclusiveA
		}
		if _, ok := onlyB[label]; ok {
			return ExclusiveB
		}
		return Shared
	}
}
