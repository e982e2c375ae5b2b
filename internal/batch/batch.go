// Package batch compares many trees pairwise on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/papapumpkin/rfplus/internal/rf"
	"github.com/papapumpkin/rfplus/internal/rfplus"
	"github.com/papapumpkin/rfplus/internal/tree"
)

// ErrTooFewTrees is returned when fewer than two trees are given.
var ErrTooFewTrees = errors.New("at least two trees are required")

// Options controls a batch run.
type Options struct {
	// Rooted selects rooted completions; otherwise trees are read as unrooted.
	Rooted bool
	// AllPairs compares every i<j pair instead of the first tree with each
	// later one.
	AllPairs bool
	// Workers bounds concurrent comparisons. Zero means GOMAXPROCS.
	Workers  int
	Logger   *slog.Logger
	Observer rfplus.Observer
	// OnDone, if set, is called from worker goroutines as each pair
	// finishes and must be safe for concurrent use.
	OnDone func(Outcome)
}

// Pair indexes two trees of the input slice.
type Pair struct {
	I, J int
}

// Outcome is the result of comparing one pair.
type Outcome struct {
	Index int
	Pair  Pair
	// FirstLine and SecondLine are the input line numbers of the trees.
	FirstLine, SecondLine     int
	FirstLeaves, SecondLeaves int
	EF, Optimal               *rfplus.Result
	// RFMinus is the distance restricted to common leaves; RFMinusOK is
	// false when the trees share none.
	RFMinus   int
	RFMinusOK bool
	RFPlus    int
	EFRFPlus  int
	Err       error
}

// Pairs lists the comparisons for n trees: the first tree against every
// later one, or every i<j pair when all is set.
func Pairs(n int, all bool) []Pair {
	var out []Pair
	last := 1
	if all {
		last = n
	}
	for i := 0; i < min(last, n); i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{I: i, J: j})
		}
	}
	return out
}

// Run compares the trees and returns one Outcome per pair, in pair order.
// A failed comparison records its error in its Outcome. Cancelling ctx
// stops scheduling; pairs not yet started carry the context error.
func Run(ctx context.Context, lines []tree.Line, opts Options) ([]Outcome, error) {
	if len(lines) < 2 {
		return nil, ErrTooFewTrees
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pairs := Pairs(len(lines), opts.AllPairs)
	p := pool.NewWithResults[Outcome]().WithContext(ctx).WithMaxGoroutines(workers)
	for i, pr := range pairs {
		p.Go(func(ctx context.Context) (Outcome, error) {
			o := Outcome{
				Index:        i,
				Pair:         pr,
				FirstLine:    lines[pr.I].Number,
				SecondLine:   lines[pr.J].Number,
				FirstLeaves:  lines[pr.I].Tree.LeafCount(),
				SecondLeaves: lines[pr.J].Tree.LeafCount(),
			}
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				compare(&o, lines[pr.I].Tree, lines[pr.J].Tree, opts, logger)
			}
			if opts.OnDone != nil {
				opts.OnDone(o)
			}
			return o, nil
		})
	}
	outcomes, err := p.Wait()
	slices.SortFunc(outcomes, func(a, b Outcome) int { return a.Index - b.Index })
	if err == nil {
		err = ctx.Err()
	}
	return outcomes, err
}

func compare(o *Outcome, a, b *tree.Tree, opts Options, logger *slog.Logger) {
	log := logger.With("tree_i", o.FirstLine, "tree_j", o.SecondLine)
	c, err := rfplus.New(a, b,
		rfplus.WithLogger(log),
		rfplus.WithObserver(opts.Observer))
	if err != nil {
		o.Err = err
		return
	}
	if o.EF, err = c.EF(opts.Rooted); err != nil {
		o.Err = fmt.Errorf("ef completion: %w", err)
		return
	}
	if o.Optimal, err = c.Optimal(opts.Rooted); err != nil {
		o.Err = fmt.Errorf("optimal completion: %w", err)
		return
	}
	if o.EFRFPlus, err = rf.Distance(o.EF.First, o.EF.Second, opts.Rooted); err != nil {
		o.Err = err
		return
	}
	if o.RFPlus, err = rf.Distance(o.Optimal.First, o.Optimal.Second, opts.Rooted); err != nil {
		o.Err = err
		return
	}
	switch o.RFMinus, err = rf.Restricted(a, b, opts.Rooted); {
	case err == nil:
		o.RFMinusOK = true
	case errors.Is(err, rf.ErrNoCommonLeaves):
	default:
		o.Err = err
		return
	}
	log.Debug("pair compared", "rf_plus", o.RFPlus, "ef_rf_plus", o.EFRFPlus, "rf_minus", o.RFMinus)
}
