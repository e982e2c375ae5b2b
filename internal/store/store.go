// Package store keeps a history of compare runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/rfplus/internal/batch"
)

// ErrRunNotFound is returned when a run ID has no stored row.
var ErrRunNotFound = errors.New("run not found")

// schema is safe to run on every open.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id       TEXT PRIMARY KEY,
    input        TEXT NOT NULL,
    rooted       INTEGER NOT NULL,
    started_at   TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    pairs        INTEGER NOT NULL DEFAULT 0,
    failed       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS comparisons (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES runs(run_id),
    tree_i        INTEGER NOT NULL,
    tree_j        INTEGER NOT NULL,
    union_size    INTEGER NOT NULL DEFAULT 0,
    intersection  INTEGER NOT NULL DEFAULT 0,
    rf_minus      INTEGER,
    rf_plus       INTEGER NOT NULL DEFAULT 0,
    ef_rf_plus    INTEGER NOT NULL DEFAULT 0,
    ef_exists     INTEGER NOT NULL DEFAULT 0,
    ef_nanos      INTEGER NOT NULL DEFAULT 0,
    opt_nanos     INTEGER NOT NULL DEFAULT 0,
    first_newick  TEXT NOT NULL DEFAULT '',
    second_newick TEXT NOT NULL DEFAULT '',
    error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS comparisons_run ON comparisons(run_id, tree_i, tree_j);
`

// Run is one stored compare invocation.
type Run struct {
	ID          string
	Input       string
	Rooted      bool
	StartedAt   time.Time
	CompletedAt time.Time
	Pairs       int
	Failed      int
}

// Comparison is one stored pair result. RFMinus is nil when the trees
// shared no leaf or the pair failed.
type Comparison struct {
	RunID        string
	TreeI, TreeJ int
	UnionSize    int
	Intersection int
	RFMinus      *int
	RFPlus       int
	EFRFPlus     int
	EFExists     bool
	EFTime       time.Duration
	OptimalTime  time.Duration
	FirstNewick  string
	SecondNewick string
	Error        string
}

// Store is a SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite has a single writer; one connection keeps the PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveRun inserts or replaces the run row.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	const q = `INSERT INTO runs (run_id, input, rooted, started_at, completed_at, pairs, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			input = excluded.input, rooted = excluded.rooted,
			started_at = excluded.started_at, completed_at = excluded.completed_at,
			pairs = excluded.pairs, failed = excluded.failed`
	_, err := s.db.ExecContext(ctx, q, r.ID, r.Input, r.Rooted,
		formatTimestamp(r.StartedAt), formatTimestamp(r.CompletedAt), r.Pairs, r.Failed)
	if err != nil {
		return fmt.Errorf("store: save run %q: %w", r.ID, err)
	}
	return nil
}

// SaveComparisons stores the outcomes of a run in one transaction.
func (s *Store) SaveComparisons(ctx context.Context, runID string, outcomes []batch.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO comparisons
		(run_id, tree_i, tree_j, union_size, intersection, rf_minus, rf_plus, ef_rf_plus,
		 ef_exists, ef_nanos, opt_nanos, first_newick, second_newick, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		c := FromOutcome(runID, o)
		var rfMinus any
		if c.RFMinus != nil {
			rfMinus = *c.RFMinus
		}
		if _, err := stmt.ExecContext(ctx, c.RunID, c.TreeI, c.TreeJ, c.UnionSize, c.Intersection,
			rfMinus, c.RFPlus, c.EFRFPlus, c.EFExists, int64(c.EFTime), int64(c.OptimalTime),
			c.FirstNewick, c.SecondNewick, c.Error); err != nil {
			return fmt.Errorf("store: insert comparison %d-%d: %w", c.TreeI, c.TreeJ, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit comparisons: %w", err)
	}
	return nil
}

// FromOutcome converts a batch outcome to its stored form. The stored
// completions are the optimal ones.
func FromOutcome(runID string, o batch.Outcome) Comparison {
	c := Comparison{RunID: runID, TreeI: o.FirstLine, TreeJ: o.SecondLine}
	if o.Err != nil {
		c.Error = o.Err.Error()
		return c
	}
	if o.RFMinusOK {
		d := o.RFMinus
		c.RFMinus = &d
	}
	c.UnionSize = o.Optimal.UnionSize
	c.Intersection = o.Optimal.IntersectionSize()
	c.RFPlus = o.RFPlus
	c.EFRFPlus = o.EFRFPlus
	c.EFExists = o.EF.EFExists
	c.EFTime = o.EF.Elapsed
	c.OptimalTime = o.Optimal.Elapsed
	c.FirstNewick = o.Optimal.First.Newick()
	c.SecondNewick = o.Optimal.Second.Newick()
	return c
}

// Runs returns the most recent runs first. A limit of zero or less returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT run_id, input, rooted, started_at, completed_at, pairs, failed
		FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate runs: %w", err)
	}
	return result, nil
}

// GetRun returns a single run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, input, rooted, started_at, completed_at, pairs, failed
		FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, completed string
	if err := sc.Scan(&r.ID, &r.Input, &r.Rooted, &started, &completed, &r.Pairs, &r.Failed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("store: scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTimestamp(started); err != nil {
		return Run{}, fmt.Errorf("store: parse started_at: %w", err)
	}
	if r.CompletedAt, err = parseTimestamp(completed); err != nil {
		return Run{}, fmt.Errorf("store: parse completed_at: %w", err)
	}
	return r, nil
}

// Comparisons returns the stored pairs of a run in tree order.
func (s *Store) Comparisons(ctx context.Context, runID string) ([]Comparison, error) {
	const q = `SELECT run_id, tree_i, tree_j, union_size, intersection, rf_minus, rf_plus, ef_rf_plus,
		ef_exists, ef_nanos, opt_nanos, first_newick, second_newick, error
		FROM comparisons WHERE run_id = ? ORDER BY tree_i, tree_j, id`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query comparisons: %w", err)
	}
	defer rows.Close()

	var result []Comparison
	for rows.Next() {
		var c Comparison
		var rfMinus sql.NullInt64
		var efNanos, optNanos int64
		if err := rows.Scan(&c.RunID, &c.TreeI, &c.TreeJ, &c.UnionSize, &c.Intersection, &rfMinus,
			&c.RFPlus, &c.EFRFPlus, &c.EFExists, &efNanos, &optNanos,
			&c.FirstNewick, &c.SecondNewick, &c.Error); err != nil {
			return nil, fmt.Errorf("store: scan comparison: %w", err)
		}
		if rfMinus.Valid {
			d := int(rfMinus.Int64)
			c.RFMinus = &d
		}
		c.EFTime = time.Duration(efNanos)
		c.OptimalTime = time.Duration(optNanos)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate comparisons: %w", err)
	}
	return result, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats lists what a row may hold: this package writes RFC 3339,
// while CURRENT_TIMESTAMP defaults use the space-separated form.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.DateTime,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
