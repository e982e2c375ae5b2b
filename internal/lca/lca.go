// Package lca answers lowest-common-ancestor queries on a static tree in
// constant time after a linear-logarithmic build, using an Euler tour and
// a sparse table of minimum-depth positions.
package lca

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// ErrUnknownNode indicates a query handle that does not appear in the tour.
var ErrUnknownNode = errors.New("node not in tour")

// Index is an immutable LCA structure over one tree snapshot. Edits to the
// tree after New are not reflected.
type Index struct {
	euler []tree.NodeID
	depth []int
	first []int
	table [][]int32
}

// New builds the index for the reachable part of t.
func New(t *tree.Tree) *Index {
	x := &Index{first: make([]int, t.Len())}
	for i := range x.first {
		x.first[i] = -1
	}
	root := t.Root()
	if root == tree.None {
		return x
	}

	type frame struct {
		id    tree.NodeID
		next  int
		depth int
	}
	visit := func(id tree.NodeID, d int) {
		if x.first[id] < 0 {
			x.first[id] = len(x.euler)
		}
		x.euler = append(x.euler, id)
		x.depth = append(x.depth, d)
	}

	stack := []frame{{id: root}}
	visit(root, 0)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := t.Children(top.id)
		if top.next < len(kids) {
			c := kids[top.next]
			top.next++
			d := top.depth + 1
			stack = append(stack, frame{id: c, depth: d})
			visit(c, d)
			continue
		}
		stack = stack[:len(stack)-1]
		if len(stack) > 0 {
			p := stack[len(stack)-1]
			visit(p.id, p.depth)
		}
	}
	x.build()
	return x
}

// build fills table[k][i] with the position of the shallowest tour entry in
// [i, i+2^k). Ties keep the left position.
func (x *Index) build() {
	n := len(x.euler)
	levels := bits.Len(uint(n))
	x.table = make([][]int32, levels)
	x.table[0] = make([]int32, n)
	for i := range n {
		x.table[0][i] = int32(i)
	}
	for k := 1; k < levels; k++ {
		half := 1 << (k - 1)
		width := n - (1 << k) + 1
		row := make([]int32, width)
		prev := x.table[k-1]
		for i := range width {
			row[i] = x.shallower(prev[i], prev[i+half])
		}
		x.table[k] = row
	}
}

func (x *Index) shallower(a, b int32) int32 {
	if x.depth[a] <= x.depth[b] {
		return a
	}
	return b
}

// Query returns the lowest common ancestor of u and v.
func (x *Index) Query(u, v tree.NodeID) (tree.NodeID, error) {
	i, err := x.position(u)
	if err != nil {
		return tree.None, err
	}
	if u == v {
		return u, nil
	}
	j, err := x.position(v)
	if err != nil {
		return tree.None, err
	}
	if i > j {
		i, j = j, i
	}
	k := bits.Len(uint(j-i+1)) - 1
	pos := x.shallower(x.table[k][i], x.table[k][j-(1<<k)+1])
	return x.euler[pos], nil
}

// Depth returns the number of edges between u and the root.
func (x *Index) Depth(u tree.NodeID) (int, error) {
	i, err := x.position(u)
	if err != nil {
		return 0, err
	}
	return x.depth[i], nil
}

// Len returns the length of the Euler tour, 2n-1 for a tree of n nodes.
func (x *Index) Len() int { return len(x.euler) }

func (x *Index) position(u tree.NodeID) (int, error) {
	if u < 0 || int(u) >= len(x.first) || x.first[u] < 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnknownNode, u)
	}
	return x.first[u], nil
}
