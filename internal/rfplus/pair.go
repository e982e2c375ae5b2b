package rfplus

import (
	"fmt"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// pairClades applies the optimizer's plan. Walking d bottom-up it keeps,
// per color, the ordered maximal clades still unpaired below each vertex;
// where the plan lets fewer clades through than are present, red and
// yellow clades are paired index for index and each pair becomes a cherry
// in both d and e. native is the exclusive color of the input d completes.
// Parents left unary by the moves are removed after all pairs are placed.
func pairClades(d, e *tree.Tree, colors *coloring, images []tree.NodeID, p *plan, native Color) error {
	var pending [2][][]tree.NodeID
	for c := range 2 {
		pending[c] = make([][]tree.NodeID, d.Len())
	}
	var doomedD, doomedE []tree.NodeID

	for _, v := range d.PostOrder() {
		for c := range 2 {
			if colors.maximal(d, v, dpColors[c]) {
				pending[c][v] = []tree.NodeID{v}
				continue
			}
			var acc []tree.NodeID
			for _, k := range d.Children(v) {
				acc = append(acc, pending[c][k]...)
				pending[c][k] = nil
			}
			pending[c][v] = acc
		}

		keepC, keepN := p.optC[v], p.optN[v]
		reds, yellows := pending[red][v], pending[yellow][v]
		switch {
		case len(reds) > 0 && len(yellows) > 0:
			m := len(pending[keepC][v])
			if m-keepN > min(len(reds), len(yellows)) || keepN > m {
				return fmt.Errorf("%w: vertex %d cannot pair %d clades", ErrArityViolation, v, m-keepN)
			}
			for i := range m - keepN {
				qd, qe, err := placePair(d, e, images, reds[i], yellows[i], native)
				if err != nil {
					return err
				}
				doomedD = append(doomedD, qd)
				doomedE = append(doomedE, qe)
			}
			pending[keepC][v] = pending[keepC][v][m-keepN:]
			pending[1-keepC][v] = nil
		case len(reds) > 0:
			pending[red][v] = keepLast(reds, keepC == red, keepN)
		case len(yellows) > 0:
			pending[yellow][v] = keepLast(yellows, keepC == yellow, keepN)
		}
	}

	for _, q := range doomedD {
		if err := d.Splice(q); err != nil {
			return fmt.Errorf("%w: %w", ErrArityViolation, err)
		}
	}
	for _, q := range doomedE {
		if err := e.Splice(q); err != nil {
			return fmt.Errorf("%w: %w", ErrArityViolation, err)
		}
	}
	return nil
}

func keepLast(ids []tree.NodeID, keep bool, n int) []tree.NodeID {
	if !keep || n <= 0 {
		return nil
	}
	return ids[max(0, len(ids)-n):]
}

// placePair joins a red and a yellow clade into a cherry in both trees.
// In each tree the cherry is appended to the parent of the clade that
// belongs to that tree's own input, and the other clade is pulled out of
// its old position.
// It returns the old parents of the pulled clades for later removal.
func placePair(d, e *tree.Tree, images []tree.NodeID, r, y tree.NodeID, native Color) (tree.NodeID, tree.NodeID, error) {
	origD, movedD := r, y
	if native != dpColors[red] {
		origD, movedD = y, r
	}
	qd, err := cherry(d, origD, movedD, r, y)
	if err != nil {
		return tree.None, tree.None, err
	}
	ri, yi := images[r], images[y]
	origE, movedE := images[movedD], images[origD]
	qe, err := cherry(e, origE, movedE, ri, yi)
	if err != nil {
		return tree.None, tree.None, err
	}
	return qd, qe, nil
}

// cherry detaches orig and moved, appends a new node with children first
// and second to orig's former parent, and returns moved's former parent.
func cherry(t *tree.Tree, orig, moved, first, second tree.NodeID) (tree.NodeID, error) {
	q, up := t.Parent(moved), t.Parent(orig)
	if q == tree.None || up == tree.None {
		return tree.None, fmt.Errorf("%w: clade %d or %d has no parent", ErrArityViolation, orig, moved)
	}
	t.AddChild(up, t.Join(first, second))
	return q, nil
}
