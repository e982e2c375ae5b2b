// Package report renders batch outcomes as the human-readable comparison
// report, the per-pair analysis CSV, and the TOML run summary.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/papapumpkin/rfplus/internal/batch"
)

// Separator closes every report block.
var Separator = strings.Repeat("-", 122)

// WriteBlock writes the report for one pair. Tree numbers are the 1-based
// positions of the trees among the input's non-blank lines. With ext set the
// EF completions are printed instead of the optimal ones.
func WriteBlock(w io.Writer, o batch.Outcome, ext bool) error {
	i, j := o.Pair.I+1, o.Pair.J+1
	var b strings.Builder
	fmt.Fprintf(&b, "Results for Tree %d and Tree %d\n", i, j)
	if o.Err != nil {
		fmt.Fprintf(&b, "error: %v\n\n%s\n\n", o.Err, Separator)
		_, err := io.WriteString(w, b.String())
		return err
	}

	res := o.Optimal
	if ext {
		res = o.EF
	}
	fmt.Fprintf(&b, "Number of leaves in Tree %d: %d\n", i, o.FirstLeaves)
	fmt.Fprintf(&b, "Number of leaves in Tree %d: %d\n", j, o.SecondLeaves)
	fmt.Fprintf(&b, "Union of leaf sets: %d\n", res.UnionSize)
	fmt.Fprintf(&b, "Intersection of leaf sets: %d\n", res.IntersectionSize())
	fmt.Fprintf(&b, "RF(-) distance: %s\n", RFMinus(o))
	fmt.Fprintf(&b, "RF(+) distance: %d\n", o.RFPlus)
	fmt.Fprintf(&b, "EF-RF(+) distance: %d\n", o.EFRFPlus)
	b.WriteString("Completed trees:\n")
	fmt.Fprintf(&b, "%s\n\n%s\n\n%s\n\n", res.First.Newick(), res.Second.Newick(), Separator)
	_, err := io.WriteString(w, b.String())
	return err
}

// RFMinus formats the restricted distance, or n/a when undefined.
func RFMinus(o batch.Outcome) string {
	if !o.RFMinusOK {
		return "n/a"
	}
	return fmt.Sprint(o.RFMinus)
}
