// Package rf computes the classic Robinson-Foulds distance between trees,
// as the size of the symmetric difference of their clusters (rooted) or
// splits (unrooted).
package rf

import (
	"errors"
	"fmt"
	"slices"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// ErrLeafSetMismatch indicates two trees over different leaf sets.
var ErrLeafSetMismatch = errors.New("leaf sets differ")

// ErrNoCommonLeaves indicates a restricted distance between trees that
// share no leaf.
var ErrNoCommonLeaves = errors.New("no common leaves")

// Rooted returns the number of clusters found in exactly one of a and b.
// The root cluster and single-leaf clusters are ignored.
func Rooted(a, b *tree.Tree) (int, error) {
	labels, err := commonLabels(a, b)
	if err != nil {
		return 0, err
	}
	return symDiff(clusters(a, labels, false), clusters(b, labels, false)), nil
}

// Unrooted returns the number of non-trivial splits found in exactly one of
// a and b. Each split is keyed by the side that omits a fixed reference leaf,
// so the placement of the root does not matter.
func Unrooted(a, b *tree.Tree) (int, error) {
	labels, err := commonLabels(a, b)
	if err != nil {
		return 0, err
	}
	return symDiff(clusters(a, labels, true), clusters(b, labels, true)), nil
}

// Distance dispatches to Rooted or Unrooted.
func Distance(a, b *tree.Tree, rooted bool) (int, error) {
	if rooted {
		return Rooted(a, b)
	}
	return Unrooted(a, b)
}

// Restricted prunes both trees to the leaves they share and returns the
// distance between the pruned trees. This is the RF(-) distance.
func Restricted(a, b *tree.Tree, rooted bool) (int, error) {
	inB := b.LeafIndex()
	common := make(map[string]bool)
	for _, l := range a.LeafLabels() {
		if _, ok := inB[l]; ok {
			common[l] = true
		}
	}
	if len(common) == 0 {
		return 0, ErrNoCommonLeaves
	}
	keep := func(l string) bool { return common[l] }
	return Distance(a.Prune(keep), b.Prune(keep), rooted)
}

// commonLabels returns the sorted leaf labels of a after checking that b
// carries exactly the same ones.
func commonLabels(a, b *tree.Tree) ([]string, error) {
	la, lb := a.LeafLabels(), b.LeafLabels()
	slices.Sort(la)
	slices.Sort(lb)
	if !slices.Equal(la, lb) {
		return nil, fmt.Errorf("%w: %d and %d leaves", ErrLeafSetMismatch, len(la), len(lb))
	}
	return la, nil
}

// clusters collects the non-trivial clusters of t as bitset keys over the
// sorted labels. With split set, clusters holding the first label are
// complemented and duplicates collapse.
func clusters(t *tree.Tree, labels []string, split bool) map[string]struct{} {
	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	n := len(labels)
	words := (n + 63) / 64
	sets := make([][]uint64, t.Len())
	sizes := make([]int, t.Len())
	out := make(map[string]struct{})

	for _, v := range t.PostOrder() {
		set := make([]uint64, words)
		if t.IsLeaf(v) {
			i := pos[t.Label(v)]
			set[i/64] |= 1 << (i % 64)
			sizes[v] = 1
		} else {
			for _, c := range t.Children(v) {
				for w := range set {
					set[w] |= sets[c][w]
				}
				sizes[v] += sizes[c]
			}
		}
		sets[v] = set

		size := sizes[v]
		if v == t.Root() || size <= 1 || size >= n {
			continue
		}
		if split {
			if size >= n-1 {
				continue
			}
			if set[0]&1 != 0 {
				set = complement(set, n)
			}
		}
		out[key(set)] = struct{}{}
	}
	return out
}

func complement(set []uint64, n int) []uint64 {
	out := make([]uint64, len(set))
	for w := range set {
		out[w] = ^set[w]
	}
	if r := n % 64; r != 0 {
		out[len(out)-1] &= (1 << r) - 1
	}
	return out
}

func key(set []uint64) string {
	b := make([]byte, 0, len(set)*8)
	for _, w := range set {
		for s := 0; s < 64; s += 8 {
			b = append(b, byte(w>>s))
		}
	}
	return string(b)
}

func symDiff(a, b map[string]struct{}) int {
	d := 0
	for k := range a {
		if _, ok := b[k]; !ok {
			d++
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			d++
		}
	}
	return d
}
