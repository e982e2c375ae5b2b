package rfplus

import (
	"fmt"
	"time"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// unrooted roots both inputs on a shared leaf, completes the two remainders
// as rooted trees, then puts the leaf back and dissolves the root.
func (c *Comparison) unrooted(optimal bool) (*Result, error) {
	start := c.opts.now()
	label, ok := c.outgroupLabel()
	var restA, restB *tree.Tree
	if ok {
		restA, ok = remainder(c.first, c.firstLeaves[label])
	}
	if ok {
		restB, ok = remainder(c.second, c.secondLeaves[label])
	}
	if !ok {
		return c.unrootedFallback(optimal, start)
	}

	sub, err := New(restA, restB, c.optionFuncs...)
	if err != nil {
		return nil, fmt.Errorf("rooting on %q: %w", label, err)
	}
	var r *Result
	if optimal {
		r, err = sub.Optimal(true)
	} else {
		r, err = sub.EF(true)
	}
	if err != nil {
		return nil, err
	}

	res := c.newResult(rejoin(label, r.First), rejoin(label, r.Second), false, optimal, r.EFExists, r.Timings, start)
	res.Outgroup = label
	return res, nil
}

// outgroupLabel picks the first leaf, in pre-order of the larger input,
// that the smaller input also carries.
func (c *Comparison) outgroupLabel() (string, bool) {
	larger, other := c.second, c.firstLeaves
	if c.swapped {
		larger, other = c.first, c.secondLeaves
	}
	for _, l := range larger.LeafLabels() {
		if _, ok := other[l]; ok {
			return l, true
		}
	}
	return "", false
}

// remainder reroots t on leaf and returns the rooted tree hanging off the
// other side of the root. It reports false when nothing remains.
func remainder(t *tree.Tree, leaf tree.NodeID) (*tree.Tree, bool) {
	out, err := t.Outgroup(leaf)
	if err != nil {
		return nil, false
	}
	kids := out.Children(out.Root())
	if len(kids) != 2 {
		return nil, false
	}
	return out.CloneSubtree(kids[1]), true
}

func rejoin(label string, rest *tree.Tree) *tree.Tree {
	t := tree.New()
	leaf := t.AddNode(label)
	t.SetRoot(t.Join(leaf, t.Graft(rest, rest.Root())))
	t.Unroot()
	return t.Clone()
}

// unrootedFallback handles inputs that share no leaf, or where a tree is
// the outgroup leaf alone: the rooted completion is computed and its root
// dissolved.
func (c *Comparison) unrootedFallback(optimal bool, start time.Time) (*Result, error) {
	var r *Result
	var err error
	if optimal {
		r, err = c.Optimal(true)
	} else {
		r, err = c.EF(true)
	}
	if err != nil {
		return nil, err
	}
	a, b := r.First.Clone(), r.Second.Clone()
	a.Unroot()
	b.Unroot()
	return c.newResult(a, b, false, optimal, r.EFExists, r.Timings, start), nil
}
