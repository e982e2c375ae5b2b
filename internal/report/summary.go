package report

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/rfplus/internal/batch"
)

// maxHistoryEntries caps the previous runs kept in a summary file.
const maxHistoryEntries = 10

// Summary describes one compare run. Durations are stored as nanoseconds
// since TOML has no duration type.
type Summary struct {
	RunID       string    `toml:"run_id"`
	Input       string    `toml:"input"`
	StartedAt   time.Time `toml:"started_at"`
	CompletedAt time.Time `toml:"completed_at"`
	Rooted      bool      `toml:"rooted"`
	Trees       int       `toml:"trees"`
	Pairs       int       `toml:"pairs"`
	Failed      int       `toml:"failed"`
	RFPlus      Stats     `toml:"rf_plus"`
	EFRFPlus    Stats     `toml:"ef_rf_plus"`
	Comparisons []Row     `toml:"comparisons"`
}

// Stats aggregates one distance over the successful pairs of a run.
type Stats struct {
	Min  int     `toml:"min"`
	Max  int     `toml:"max"`
	Mean float64 `toml:"mean"`
}

// Row is the condensed record of one pair.
type Row struct {
	TreeI      int    `toml:"tree_i"`
	TreeJ      int    `toml:"tree_j"`
	RFMinus    string `toml:"rf_minus"`
	RFPlus     int    `toml:"rf_plus"`
	EFRFPlus   int    `toml:"ef_rf_plus"`
	EFExists   bool   `toml:"ef_exists"`
	DurationNs int64  `toml:"duration_ns"`
	Error      string `toml:"error,omitempty"`
}

// HistoryEntry is what remains of a previous run once it is rotated out.
type HistoryEntry struct {
	RunID      string    `toml:"run_id"`
	Input      string    `toml:"input"`
	StartedAt  time.Time `toml:"started_at"`
	DurationNs int64     `toml:"duration_ns"`
	Pairs      int       `toml:"pairs"`
	Failed     int       `toml:"failed"`
}

type summaryFile struct {
	Current Summary        `toml:"current"`
	History []HistoryEntry `toml:"history"`
}

// Summarize builds a Summary from a run's outcomes.
func Summarize(runID, input string, trees int, rooted bool, started, completed time.Time, outcomes []batch.Outcome) Summary {
	s := Summary{
		RunID:       runID,
		Input:       input,
		StartedAt:   started,
		CompletedAt: completed,
		Rooted:      rooted,
		Trees:       trees,
		Pairs:       len(outcomes),
	}
	var rfPlus, efRFPlus []int
	for _, o := range outcomes {
		row := Row{TreeI: o.FirstLine, TreeJ: o.SecondLine}
		if o.Err != nil {
			s.Failed++
			row.Error = o.Err.Error()
			s.Comparisons = append(s.Comparisons, row)
			continue
		}
		row.RFMinus = RFMinus(o)
		row.RFPlus = o.RFPlus
		row.EFRFPlus = o.EFRFPlus
		row.EFExists = o.EF.EFExists
		row.DurationNs = int64(o.EF.Elapsed + o.Optimal.Elapsed)
		rfPlus = append(rfPlus, o.RFPlus)
		efRFPlus = append(efRFPlus, o.EFRFPlus)
		s.Comparisons = append(s.Comparisons, row)
	}
	s.RFPlus = stats(rfPlus)
	s.EFRFPlus = stats(efRFPlus)
	return s
}

func stats(xs []int) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	st := Stats{Min: xs[0], Max: xs[0]}
	sum := 0
	for _, x := range xs {
		st.Min = min(st.Min, x)
		st.Max = max(st.Max, x)
		sum += x
	}
	st.Mean = float64(sum) / float64(len(xs))
	return st
}

// SaveSummary writes s to path. If the file already holds a summary, that
// run is rotated into the history list, capped at the most recent entries.
func SaveSummary(path string, s Summary) error {
	existing, err := loadSummaryFile(path)
	if err != nil {
		return fmt.Errorf("loading existing summary: %w", err)
	}

	var history []HistoryEntry
	if existing != nil {
		history = append(existing.History, historyOf(existing.Current))
	}
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}

	data, err := toml.Marshal(summaryFile{Current: s, History: history})
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp summary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming summary file: %w", err)
	}
	return nil
}

// LoadSummary reads the current summary and the history of earlier runs.
// Both are nil when the file does not exist.
func LoadSummary(path string) (*Summary, []HistoryEntry, error) {
	f, err := loadSummaryFile(path)
	if err != nil || f == nil {
		return nil, nil, err
	}
	return &f.Current, f.History, nil
}

func historyOf(s Summary) HistoryEntry {
	return HistoryEntry{
		RunID:      s.RunID,
		Input:      s.Input,
		StartedAt:  s.StartedAt,
		DurationNs: int64(s.CompletedAt.Sub(s.StartedAt)),
		Pairs:      s.Pairs,
		Failed:     s.Failed,
	}
}

func loadSummaryFile(path string) (*summaryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading summary file: %w", err)
	}
	var f summaryFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing summary file: %w", err)
	}
	return &f, nil
}
