// Package rfplus completes two binary trees over different leaf sets so
// that both carry the union of the leaves, choosing the completion that
// keeps their Robinson-Foulds distance as small as possible.
//
// Two completions are offered. The extraneous-free (EF) completion grafts
// each tree's exclusive clades into the other at the position the shared
// leaves dictate. The optimal completion starts from the EF pair and
// re-pairs exclusive clades of opposite origin where a dynamic program over
// the completed tree shows that doing so lowers the distance.
package rfplus

import (
	"fmt"
	"time"

	"github.com/papapumpkin/rfplus/internal/tree"
)

// Result is one completed pair of trees together with the leaf-set
// statistics reported alongside it.
type Result struct {
	// First and Second are the completions of the first and second input,
	// in the order they were passed to New.
	First, Second *tree.Tree
	Rooted        bool
	// Optimal is false for EF completions.
	Optimal bool
	// EFExists is false when the inputs share no leaf and the completion
	// simply joins them at the root.
	EFExists        bool
	UnionSize       int
	ExclusiveFirst  int
	ExclusiveSecond int
	// Outgroup is the shared leaf used to root unrooted inputs.
	Outgroup string
	Timings  Timings
	Elapsed  time.Duration

	// change is the RF change the optimizer planned over the EF completion.
	change int
}

// IntersectionSize returns the number of leaves common to both inputs.
func (r *Result) IntersectionSize() int {
	return r.UnionSize - r.ExclusiveFirst - r.ExclusiveSecond
}

// Comparison holds one pair of input trees and memoizes their completions.
// It is not safe for concurrent use.
type Comparison struct {
	first, second *tree.Tree
	firstLeaves   map[string]tree.NodeID
	secondLeaves  map[string]tree.NodeID
	onlyFirst     map[string]struct{}
	onlySecond    map[string]struct{}
	union         int
	swapped       bool
	opts          options
	optionFuncs   []Option
	ef            *efState
	results       [2][2]*Result
}

// efState is the rooted EF completion kept for the optimizer, in
// processing order: the smaller input first.
type efState struct {
	procFirst, procSecond *tree.Tree
	degenerate            bool
	timings               Timings
}

// New validates both trees and prepares their comparison. The trees are
// copied; later edits by the caller do not affect the Comparison.
func New(first, second *tree.Tree, opts ...Option) (*Comparison, error) {
	if err := validate(first, "first"); err != nil {
		return nil, err
	}
	if err := validate(second, "second"); err != nil {
		return nil, err
	}
	c := &Comparison{
		first:       first.Clone(),
		second:      second.Clone(),
		opts:        defaultOptions(),
		optionFuncs: opts,
		onlyFirst:   make(map[string]struct{}),
		onlySecond:  make(map[string]struct{}),
	}
	for _, o := range opts {
		o(&c.opts)
	}
	c.firstLeaves = c.first.LeafIndex()
	c.secondLeaves = c.second.LeafIndex()
	for l := range c.firstLeaves {
		if _, ok := c.secondLeaves[l]; !ok {
			c.onlyFirst[l] = struct{}{}
		}
	}
	for l := range c.secondLeaves {
		if _, ok := c.firstLeaves[l]; !ok {
			c.onlySecond[l] = struct{}{}
		}
	}
	c.union = len(c.firstLeaves) + len(c.onlySecond)
	c.swapped = len(c.firstLeaves) > len(c.secondLeaves)
	return c, nil
}

func validate(t *tree.Tree, which string) error {
	if t == nil || t.Root() == tree.None {
		return fmt.Errorf("%w: %s tree: %w", ErrStructuralViolation, which, tree.ErrEmpty)
	}
	if !t.IsBinary() {
		return fmt.Errorf("%w: %s tree is not binary", ErrStructuralViolation, which)
	}
	for _, v := range t.Leaves() {
		if t.Label(v) == "" {
			return fmt.Errorf("%w: %s tree has an unlabeled leaf", ErrStructuralViolation, which)
		}
	}
	if err := t.CheckLabels(); err != nil {
		return fmt.Errorf("%w: %s tree: %w", ErrStructuralViolation, which, err)
	}
	return nil
}

// EF returns the extraneous-free completion.
func (c *Comparison) EF(rooted bool) (*Result, error) {
	return c.memo(false, rooted, func() (*Result, error) {
		if rooted {
			return c.efRooted()
		}
		return c.unrooted(false)
	})
}

// Optimal returns the minimum-distance completion.
func (c *Comparison) Optimal(rooted bool) (*Result, error) {
	return c.memo(true, rooted, func() (*Result, error) {
		if rooted {
			return c.optimalRooted()
		}
		return c.unrooted(true)
	})
}

// EFRooted is shorthand for EF(true).
func (c *Comparison) EFRooted() (*Result, error) { return c.EF(true) }

// EFUnrooted is shorthand for EF(false).
func (c *Comparison) EFUnrooted() (*Result, error) { return c.EF(false) }

// OptimalRooted is shorthand for Optimal(true).
func (c *Comparison) OptimalRooted() (*Result, error) { return c.Optimal(true) }

// OptimalUnrooted is shorthand for Optimal(false).
func (c *Comparison) OptimalUnrooted() (*Result, error) { return c.Optimal(false) }

func (c *Comparison) memo(optimal, rooted bool, compute func() (*Result, error)) (*Result, error) {
	i, j := b2i(optimal), b2i(rooted)
	if r := c.results[i][j]; r != nil {
		return r, nil
	}
	r, err := compute()
	if err != nil {
		return nil, err
	}
	c.results[i][j] = r
	return r, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *Comparison) newResult(a, b *tree.Tree, rooted, optimal, efExists bool, t Timings, start time.Time) *Result {
	return &Result{
		First:           a,
		Second:          b,
		Rooted:          rooted,
		Optimal:         optimal,
		EFExists:        efExists,
		UnionSize:       c.union,
		ExclusiveFirst:  len(c.onlyFirst),
		ExclusiveSecond: len(c.onlySecond),
		Timings:         t,
		Elapsed:         c.opts.now().Sub(start),
	}
}

// inputOrder maps a pair in processing order back to the caller's order.
func (c *Comparison) inputOrder(procFirst, procSecond *tree.Tree) (*tree.Tree, *tree.Tree) {
	if c.swapped {
		return procSecond, procFirst
	}
	return procFirst, procSecond
}

// efCompletion runs both grafting passes once. The smaller tree receives
// the larger tree's exclusive clades first; the larger tree then receives
// the clades of the completed smaller one, so clades grafted in the first
// pass anchor the second.
func (c *Comparison) efCompletion() (*efState, error) {
	if c.ef != nil {
		return c.ef, nil
	}
	sw := newStopwatch(&c.opts)
	small, large := c.first.Clone(), c.second.Clone()
	smallSide, largeSide := ExclusiveA, ExclusiveB
	if c.swapped {
		small, large = large, small
		smallSide, largeSide = largeSide, smallSide
	}

	degenerate, err := graftExclusive(small, large, largeSide, sw)
	if err != nil {
		return nil, fmt.Errorf("grafting into smaller tree: %w", err)
	}
	small = small.Clone()
	if _, err := graftExclusive(large, small, smallSide, sw); err != nil {
		return nil, fmt.Errorf("grafting into larger tree: %w", err)
	}
	large = large.Clone()

	c.ef = &efState{procFirst: small, procSecond: large, degenerate: degenerate, timings: sw.timings}
	c.opts.logger.Debug("ef completion",
		"union", c.union,
		"exclusive_first", len(c.onlyFirst),
		"exclusive_second", len(c.onlySecond),
		"degenerate", degenerate,
		"elapsed", sw.timings.Total())
	return c.ef, nil
}

func (c *Comparison) efRooted() (*Result, error) {
	start := c.opts.now()
	st, err := c.efCompletion()
	if err != nil {
		return nil, err
	}
	a, b := c.inputOrder(st.procFirst.Clone(), st.procSecond.Clone())
	return c.newResult(a, b, true, false, !st.degenerate, st.timings, start), nil
}

// optimalRooted re-pairs exclusive clades of the EF completion. The
// program runs over the larger tree's completion d, against the smaller
// tree's completion e.
func (c *Comparison) optimalRooted() (*Result, error) {
	start := c.opts.now()
	st, err := c.efCompletion()
	if err != nil {
		return nil, err
	}

	sw := newStopwatch(&c.opts)
	d, e := st.procSecond.Clone(), st.procFirst.Clone()
	colors, err := colorTree(d, unionClassifier(c.onlyFirst, c.onlySecond))
	if err != nil {
		return nil, err
	}
	sw.lap(PhaseColor)

	images, err := unionImages(d, e)
	if err != nil {
		return nil, err
	}
	sw.lap(PhaseIndex)

	p := optimize(d, colors, matches(d, e, colors, images))
	sw.lap(PhaseOptimize)

	native := ExclusiveB
	if c.swapped {
		native = ExclusiveA
	}
	change := 2 * p.cost[red][d.Root()][0]
	if err := pairClades(d, e, colors, images, p, native); err != nil {
		return nil, err
	}
	sw.lap(PhaseReconstruct)

	c.opts.logger.Debug("optimal completion",
		"rf_change", change,
		"elapsed", sw.timings.Total())

	t := sw.timings
	t.Graft = st.timings.Graft
	a, b := c.inputOrder(e.Clone(), d.Clone())
	res := c.newResult(a, b, true, true, !st.degenerate, t, start)
	res.change = change
	return res, nil
}
