package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/rfplus/internal/tree"
	"github.com/papapumpkin/rfplus/internal/ui"
)

// maxLine bounds a single Newick line.
const maxLine = 64 << 20

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a Newick file without comparing",
	Long: `Parses every non-blank line of the input, reports its leaf count, and
notes the trees that need binarization before they can be compared. Exits
non-zero if any line is malformed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()

		bad, err := checkTrees(f, ui.New(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		if bad > 0 {
			return fmt.Errorf("%s: %d malformed line(s)", input, bad)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringP("input", "i", "", "Newick file, one tree per line (required)")
	_ = checkCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(checkCmd)
}

// checkTrees reports every non-blank line and returns how many failed to parse.
func checkTrees(r io.Reader, p *ui.Printer) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	bad, n := 0, 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		t, err := tree.Parse(line)
		if err != nil {
			bad++
			p.CheckLine(n, 0, false, err)
			continue
		}
		p.CheckLine(n, t.LeafCount(), t.Binarize(), nil)
	}
	if err := sc.Err(); err != nil {
		return bad, fmt.Errorf("reading input: %w", err)
	}
	return bad, nil
}
