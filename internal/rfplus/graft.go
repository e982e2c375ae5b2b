package rfplus

import (
	"fmt"

	"github.com/papapumpkin/rfplus/internal/lca"
	"github.com/papapumpkin/rfplus/internal/tree"
)

// graftExclusive copies every maximal clade of source whose leaves are
// missing from target into target, each at the position its anchored
// sibling maps to. side is the color given to source's exclusive leaves.
// It reports true when source shares no leaf with target, in which case
// source is joined whole at target's root.
func graftExclusive(target, source *tree.Tree, side Color, sw *stopwatch) (bool, error) {
	present := target.LeafIndex()
	colors, err := colorTree(source, func(label string) Color {
		if _, ok := present[label]; ok {
			return Shared
		}
		return side
	})
	if err != nil {
		return false, err
	}
	sw.lap(PhaseColor)

	root := source.Root()
	if colors.color[root].Exclusive() {
		cp := target.Graft(source, root)
		target.SetRoot(target.Join(target.Root(), cp))
		sw.lap(PhaseGraft)
		return true, nil
	}

	idx := lca.New(target)
	images, err := anchorImages(source, colors, idx, present)
	if err != nil {
		return false, err
	}
	sw.lap(PhaseIndex)

	for _, v := range source.PreOrder() {
		if !colors.mark[v] {
			continue
		}
		for _, c := range source.Children(v) {
			if !colors.color[c].Exclusive() {
				continue
			}
			img := images[v]
			cp := target.Graft(source, c)
			if target.Parent(img) == tree.None {
				target.SetRoot(target.Join(target.Root(), cp))
				continue
			}
			// The new cherry becomes the last child of img's parent.
			up := target.Parent(img)
			target.AddChild(up, target.Join(cp, img))
		}
	}
	sw.lap(PhaseGraft)
	return false, nil
}

// anchorImages maps every anchored node of source to a node of the tree
// idx was built over: a leaf to the leaf with the same label, an internal
// node to the LCA of its anchored children's images. Nodes without an
// image map to tree.None. The map is computed before any edit to the
// target and stays fixed while clades are grafted.
func anchorImages(source *tree.Tree, colors *coloring, idx *lca.Index, leaves map[string]tree.NodeID) ([]tree.NodeID, error) {
	images := make([]tree.NodeID, source.Len())
	for i := range images {
		images[i] = tree.None
	}
	for _, v := range source.PostOrder() {
		if !colors.color[v].anchored() {
			continue
		}
		if source.IsLeaf(v) {
			img, ok := leaves[source.Label(v)]
			if !ok {
				return nil, fmt.Errorf("%w: leaf %q has no counterpart", ErrLabelConsistency, source.Label(v))
			}
			images[v] = img
			continue
		}
		var anchors []tree.NodeID
		for _, c := range source.Children(v) {
			if colors.color[c].anchored() {
				anchors = append(anchors, images[c])
			}
		}
		switch len(anchors) {
		case 1:
			images[v] = anchors[0]
		case 2:
			img, err := idx.Query(anchors[0], anchors[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrLabelConsistency, err)
			}
			images[v] = img
		default:
			return nil, fmt.Errorf("%w: node %d has no anchored child", ErrLabelConsistency, v)
		}
	}
	return images, nil
}

// unionImages maps every node of d to the LCA in e of the leaves below it.
// Both trees must carry the same leaf set.
func unionImages(d, e *tree.Tree) ([]tree.NodeID, error) {
	idx := lca.New(e)
	leaves := e.LeafIndex()
	images := make([]tree.NodeID, d.Len())
	for i := range images {
		images[i] = tree.None
	}
	for _, v := range d.PostOrder() {
		kids := d.Children(v)
		if len(kids) == 0 {
			img, ok := leaves[d.Label(v)]
			if !ok {
				return nil, fmt.Errorf("%w: leaf %q missing from completion", ErrLabelConsistency, d.Label(v))
			}
			images[v] = img
			continue
		}
		img, err := idx.Query(images[kids[0]], images[kids[1]])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLabelConsistency, err)
		}
		images[v] = img
	}
	return images, nil
}
