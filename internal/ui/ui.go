// Package ui prints run progress and status lines to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/papapumpkin/rfplus/internal/batch"
)

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF") // Cyan
	colorAccent  = lipgloss.Color("#FFD700") // Gold
	colorSuccess = lipgloss.Color("#00E676") // Green
	colorDanger  = lipgloss.Color("#FF5252") // Red
	colorMuted   = lipgloss.Color("#636363") // Gray
)

const (
	iconDone   = "✓"
	iconFailed = "✗"
	iconPair   = "◆"
)

type styles struct {
	title, ok, failed, warn, dim lipgloss.Style
}

// Printer writes status output. Styling is applied only when the
// destination is a terminal.
type Printer struct {
	w     io.Writer
	color bool
	st    styles
}

// New returns a Printer for w.
func New(w io.Writer) *Printer {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:     w,
		color: color,
		st: styles{
			title:  r.NewStyle().Foreground(colorPrimary).Bold(true),
			ok:     r.NewStyle().Foreground(colorSuccess).Bold(true),
			failed: r.NewStyle().Foreground(colorDanger).Bold(true),
			warn:   r.NewStyle().Foreground(colorAccent),
			dim:    r.NewStyle().Foreground(colorMuted),
		},
	}
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// RunStart announces a compare run.
func (p *Printer) RunStart(input string, trees, pairs int, rooted bool) {
	mode := "unrooted"
	if rooted {
		mode = "rooted"
	}
	fmt.Fprintf(p.w, "%s %s %s\n",
		p.paint(p.st.title, "rfplus"),
		input,
		p.paint(p.st.dim, fmt.Sprintf("(%d trees, %d pairs, %s)", trees, pairs, mode)))
}

// PairDone prints one line per finished pair.
func (p *Printer) PairDone(o batch.Outcome) {
	label := fmt.Sprintf("%s %d-%d", iconPair, o.FirstLine, o.SecondLine)
	if o.Err != nil {
		fmt.Fprintf(p.w, "  %s %s\n", p.paint(p.st.failed, label), o.Err)
		return
	}
	fmt.Fprintf(p.w, "  %s RF(+) %d  EF-RF(+) %d %s\n",
		p.paint(p.st.ok, label), o.RFPlus, o.EFRFPlus,
		p.paint(p.st.dim, fmt.Sprintf("(%s)", (o.EF.Elapsed+o.Optimal.Elapsed).Round(time.Microsecond))))
}

// RunDone prints the closing line of a run.
func (p *Printer) RunDone(pairs, failed int, elapsed time.Duration) {
	if failed > 0 {
		fmt.Fprintf(p.w, "%s %d of %d pairs failed %s\n",
			p.paint(p.st.failed, iconFailed), failed, pairs,
			p.paint(p.st.dim, "("+elapsed.Round(time.Millisecond).String()+")"))
		return
	}
	fmt.Fprintf(p.w, "%s %d pairs compared %s\n",
		p.paint(p.st.ok, iconDone), pairs,
		p.paint(p.st.dim, "("+elapsed.Round(time.Millisecond).String()+")"))
}

// CheckLine reports the validation result of one input line.
func (p *Printer) CheckLine(line, leaves int, binarized bool, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "%s line %d: %v\n", p.paint(p.st.failed, iconFailed), line, err)
		return
	}
	note := ""
	if binarized {
		note = " " + p.paint(p.st.warn, "(binarized)")
	}
	fmt.Fprintf(p.w, "%s line %d: %d leaves%s\n", p.paint(p.st.ok, iconDone), line, leaves, note)
}

// Info prints a de-emphasized message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, p.paint(p.st.dim, msg))
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(p.st.failed, "error:"), msg)
}
