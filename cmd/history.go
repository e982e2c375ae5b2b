package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/rfplus/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List compare runs recorded in the result database",
	Long: `Without --run, lists the most recent runs. With --run, lists the stored
pairs of that run.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlag("store.path", cmd.Flags().Lookup("db"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := loadRuntime(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closer.Close()
		if cfg.Store.Path == "" {
			return fmt.Errorf("no database: set --db or store.path")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runID, _ := cmd.Flags().GetString("run")
		return showHistory(cmd.Context(), cmd.OutOrStdout(), cfg.Store.Path, runID, limit)
	},
}

func init() {
	historyCmd.Flags().String("db", "", "SQLite result database")
	historyCmd.Flags().Int("limit", 20, "number of runs to list (0 for all)")
	historyCmd.Flags().String("run", "", "show the pairs of this run")
	rootCmd.AddCommand(historyCmd)
}

func showHistory(ctx context.Context, w io.Writer, path, runID string, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.Runs(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "no runs recorded")
			return nil
		}
		t := table.New().Border(lipgloss.NormalBorder()).
			Headers("RUN", "STARTED", "INPUT", "MODE", "PAIRS", "FAILED", "DURATION")
		for _, r := range runs {
			t.Row(r.ID, r.StartedAt.Local().Format(time.DateTime), r.Input, mode(r.Rooted),
				strconv.Itoa(r.Pairs), strconv.Itoa(r.Failed),
				r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String())
		}
		fmt.Fprintln(w, t.Render())
		return nil
	}

	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	rows, err := db.Comparisons(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "run %s: %s (%s, %d pairs, %d failed)\n", run.ID, run.Input, mode(run.Rooted), run.Pairs, run.Failed)
	t := table.New().Border(lipgloss.NormalBorder()).
		Headers("TREE I", "TREE J", "UNION", "SHARED", "RF(-)", "RF(+)", "EF-RF(+)", "ERROR")
	for _, c := range rows {
		rfMinus := "n/a"
		if c.RFMinus != nil {
			rfMinus = strconv.Itoa(*c.RFMinus)
		}
		if c.Error != "" {
			t.Row(strconv.Itoa(c.TreeI), strconv.Itoa(c.TreeJ), "", "", "", "", "", c.Error)
			continue
		}
		t.Row(strconv.Itoa(c.TreeI), strconv.Itoa(c.TreeJ),
			strconv.Itoa(c.UnionSize), strconv.Itoa(c.Intersection),
			rfMinus, strconv.Itoa(c.RFPlus), strconv.Itoa(c.EFRFPlus), "")
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

func mode(rooted bool) string {
	if rooted {
		return "rooted"
	}
	return "unrooted"
}
