package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/papapumpkin/rfplus/internal/batch"
)

var analysisHeader = []string{
	"tree_i_line", "tree_j_line",
	"rf_minus", "rf_plus", "ef_rf_plus",
	"intersection", "union",
	"ef_seconds", "rf_plus_seconds",
	"error",
}

// WriteAnalysis writes one CSV row per outcome, labeled by input line
// numbers. The RF(+) runtime excludes the EF completion it starts from.
func WriteAnalysis(w io.Writer, outcomes []batch.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(analysisHeader); err != nil {
		return fmt.Errorf("writing analysis header: %w", err)
	}
	for _, o := range outcomes {
		row := []string{strconv.Itoa(o.FirstLine), strconv.Itoa(o.SecondLine)}
		if o.Err != nil {
			row = append(row, "", "", "", "", "", "", "", o.Err.Error())
		} else {
			optimal := o.Optimal.Timings
			optimal.Graft = 0
			row = append(row,
				RFMinus(o),
				strconv.Itoa(o.RFPlus),
				strconv.Itoa(o.EFRFPlus),
				strconv.Itoa(o.EF.IntersectionSize()),
				strconv.Itoa(o.EF.UnionSize),
				strconv.FormatFloat(o.EF.Timings.Total().Seconds(), 'f', 6, 64),
				strconv.FormatFloat(optimal.Total().Seconds(), 'f', 6, 64),
				"",
			)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing analysis row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
