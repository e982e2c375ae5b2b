package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/papapumpkin/rfplus/internal/batch"
	"github.com/papapumpkin/rfplus/internal/config"
	"github.com/papapumpkin/rfplus/internal/metrics"
	"github.com/papapumpkin/rfplus/internal/report"
	"github.com/papapumpkin/rfplus/internal/rfplus"
	"github.com/papapumpkin/rfplus/internal/store"
	"github.com/papapumpkin/rfplus/internal/telemetry"
	"github.com/papapumpkin/rfplus/internal/tree"
	"github.com/papapumpkin/rfplus/internal/ui"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the first tree of a Newick file with every later tree",
	Long: `Reads one Newick tree per non-blank line, binarizes multifurcations, and
compares tree 1 with every later tree (or every pair with --all-pairs).
For each pair it prints the leaf counts, the union and intersection of the
leaf sets, the RF(-), RF(+) and EF-RF(+) distances, and the completed trees.`,
	PreRunE: bindCompareFlags,
	RunE:    runCompare,
}

func init() {
	addCompareFlags(compareCmd)
	rootCmd.AddCommand(compareCmd)
}

// addCompareFlags declares the flags shared by compare and watch.
func addCompareFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("input", "i", "", "Newick file, one tree per line (required)")
	f.StringP("output", "o", "", "write the report to this file instead of stdout")
	f.Bool("ext", false, "print the extraneous-free completions instead of the optimal ones")
	f.BoolP("unrooted", "u", false, "treat the input trees as unrooted")
	f.Bool("all-pairs", false, "compare every pair of trees, not just tree 1 with the rest")
	f.Int("workers", 0, "concurrent comparisons (default GOMAXPROCS)")
	f.String("analysis", "", "write a per-pair CSV analysis to this file")
	f.String("summary", "", "write a TOML run summary to this file")
	f.String("db", "", "record the run in this SQLite database")
	f.String("events", "", "append JSONL run events to this file")
	f.String("metrics", "", "write prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("input")
}

// compareFlagKeys maps flag names onto configuration keys.
var compareFlagKeys = map[string]string{
	"ext":       "extraneous_free",
	"unrooted":  "unrooted",
	"all-pairs": "all_pairs",
	"workers":   "workers",
	"analysis":  "report.analysis_path",
	"summary":   "report.summary_path",
	"db":        "store.path",
	"events":    "telemetry.path",
	"metrics":   "metrics.path",
}

// bindCompareFlags binds the flags of the command being run, so compare and
// watch can share configuration keys.
func bindCompareFlags(cmd *cobra.Command, _ []string) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := compareFlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := viper.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("binding --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

func runCompare(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := loadRuntime(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	run := compareRun{
		cfg:    cfg,
		input:  input,
		output: output,
		logger: logger,
		stdout: cmd.OutOrStdout(),
		status: ui.New(cmd.ErrOrStderr()),
		now:    time.Now,
	}
	return run.execute(cmd.Context())
}

// compareRun is one invocation of the compare pipeline.
type compareRun struct {
	cfg    config.Config
	input  string
	output string
	logger *slog.Logger
	stdout io.Writer
	status *ui.Printer
	now    func() time.Time
}

func (r compareRun) execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	lines, err := readTrees(r.input, r.logger)
	if err != nil {
		return err
	}
	rooted := !r.cfg.Unrooted
	pairs := len(batch.Pairs(len(lines), r.cfg.AllPairs))

	runID := telemetry.NewRunID()
	log := r.logger.With("run", runID)
	var events *telemetry.Emitter
	if r.cfg.Telemetry.Path != "" {
		if events, err = telemetry.NewEmitter(r.cfg.Telemetry.Path, runID); err != nil {
			return err
		}
		defer events.Close()
	}
	var rec *metrics.Recorder
	var observer rfplus.Observer
	if r.cfg.Metrics.Path != "" {
		rec = metrics.New()
		observer = rec
	}

	started := r.now()
	if err := events.Start(telemetry.RunStart{Input: r.input, Trees: len(lines), Pairs: pairs, Rooted: rooted}); err != nil {
		log.Warn("telemetry event dropped", "error", err)
	}
	r.status.RunStart(r.input, len(lines), pairs, rooted)

	var mu sync.Mutex
	outcomes, runErr := batch.Run(ctx, lines, batch.Options{
		Rooted:   rooted,
		AllPairs: r.cfg.AllPairs,
		Workers:  r.cfg.Workers,
		Logger:   log,
		Observer: observer,
		OnDone: func(o batch.Outcome) {
			rec.ObserveOutcome(o)
			mu.Lock()
			defer mu.Unlock()
			r.status.PairDone(o)
			if err := events.Outcome(o); err != nil {
				log.Warn("telemetry event dropped", "error", err)
			}
		},
	})
	if runErr != nil && len(outcomes) == 0 {
		return runErr
	}
	completed := r.now()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			log.Error("pair failed", "tree_i", o.FirstLine, "tree_j", o.SecondLine, "error", o.Err)
		}
	}

	if err := r.writeReport(outcomes); err != nil {
		return err
	}
	if err := r.persist(ctx, runID, len(lines), rooted, started, completed, outcomes, failed); err != nil {
		return err
	}
	if err := rec.WriteTextfile(r.cfg.Metrics.Path); err != nil {
		return err
	}
	if err := events.Done(telemetry.RunDone{Pairs: len(outcomes), Failed: failed, Seconds: completed.Sub(started).Seconds()}); err != nil {
		log.Warn("telemetry event dropped", "error", err)
	}
	r.status.RunDone(len(outcomes), failed, completed.Sub(started))

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pairs failed", failed, len(outcomes))
	}
	return nil
}

// readTrees parses the input file and binarizes every tree.
func readTrees(path string, logger *slog.Logger) ([]tree.Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	lines, err := tree.ParseAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for _, l := range lines {
		if l.Tree.Binarize() {
			logger.Info("binarized multifurcating tree", "line", l.Number)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%s: %w", path, batch.ErrTooFewTrees)
	}
	return lines, nil
}

func (r compareRun) writeReport(outcomes []batch.Outcome) (err error) {
	w := r.stdout
	if r.output != "" {
		f, createErr := os.Create(r.output)
		if createErr != nil {
			return fmt.Errorf("creating report: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	bw := bufio.NewWriter(w)
	for _, o := range outcomes {
		if err := report.WriteBlock(bw, o, r.cfg.ExtraneousFree); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	return bw.Flush()
}

// persist writes the optional analysis CSV, run summary, and database rows.
func (r compareRun) persist(ctx context.Context, runID string, trees int, rooted bool, started, completed time.Time, outcomes []batch.Outcome, failed int) error {
	if path := r.cfg.Report.AnalysisPath; path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating analysis file: %w", err)
		}
		err = report.WriteAnalysis(f, outcomes)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	if path := r.cfg.Report.SummaryPath; path != "" {
		s := report.Summarize(runID, r.input, trees, rooted, started, completed, outcomes)
		if err := report.SaveSummary(path, s); err != nil {
			return err
		}
	}
	if path := r.cfg.Store.Path; path != "" {
		db, err := store.Open(ctx, path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(ctx, store.Run{
			ID:          runID,
			Input:       r.input,
			Rooted:      rooted,
			StartedAt:   started,
			CompletedAt: completed,
			Pairs:       len(outcomes),
			Failed:      failed,
		}); err != nil {
			return err
		}
		if err := db.SaveComparisons(ctx, runID, outcomes); err != nil {
			return err
		}
	}
	return nil
}
