// Package telemetry records a compare run as a JSONL event stream: one line
// when the run starts, one per finished pair, and one when it ends. Every
// event carries the run ID, so several runs can share one file.
package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papapumpkin/rfplus/internal/batch"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart         = "run_start"
	KindComparisonDone   = "comparison_done"
	KindComparisonFailed = "comparison_failed"
	KindRunDone          = "run_done"
)

// Event is a single telemetry record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run"`
	Pair      string    `json:"pair,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// RunStart is the payload of a run_start event.
type RunStart struct {
	Input  string `json:"input"`
	Trees  int    `json:"trees"`
	Pairs  int    `json:"pairs"`
	Rooted bool   `json:"rooted"`
}

// Comparison is the payload of a comparison event.
type Comparison struct {
	TreeI     int     `json:"tree_i"`
	TreeJ     int     `json:"tree_j"`
	RFMinus   *int    `json:"rf_minus,omitempty"`
	RFPlus    int     `json:"rf_plus"`
	EFRFPlus  int     `json:"ef_rf_plus"`
	EFExists  bool    `json:"ef_exists"`
	UnionSize int     `json:"union"`
	Seconds   float64 `json:"seconds"`
	Error     string  `json:"error,omitempty"`
}

// RunDone is the payload of a run_done event.
type RunDone struct {
	Pairs   int     `json:"pairs"`
	Failed  int     `json:"failed"`
	Seconds float64 `json:"seconds"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Emitter writes events as JSON lines. It is safe for concurrent use by
// multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	runID  string
	closer io.Closer
	enc    *json.Encoder
	now    func() time.Time
	mu     sync.Mutex
}

// NewEmitter appends the events of runID to the file at path, creating it
// if needed.
func NewEmitter(path, runID string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	em := NewWriterEmitter(f, runID)
	em.closer = f
	return em, nil
}

// NewWriterEmitter writes events to w. Close does not close w.
func NewWriterEmitter(w io.Writer, runID string) *Emitter {
	return &Emitter{runID: runID, enc: json.NewEncoder(w), now: time.Now}
}

// RunID returns the identifier stamped on every event.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit writes a single event, filling in the run ID and a missing timestamp.
// Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	evt.RunID = e.runID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Start emits the run_start event.
func (e *Emitter) Start(s RunStart) error {
	return e.Emit(Event{Kind: KindRunStart, Data: s})
}

// Outcome emits comparison_done or comparison_failed for one pair.
func (e *Emitter) Outcome(o batch.Outcome) error {
	if e == nil {
		return nil
	}
	c :=Comparison{TreeI: o.FirstLine, TreeJ: o.SecondLine}
	kind := KindComparisonDone
	if o.Err != nil {
		kind = KindComparisonFailed
		c.Error = o.Err.Error()
	} else {
		if o.RFMinusOK {
			d := o.RFMinus
			c.RFMinus = &d
		}
		c.RFPlus = o.RFPlus
		c.EFRFPlus = o.EFRFPlus
		c.EFExists = o.EF.EFExists
		c.UnionSize = o.Optimal.UnionSize
		c.Seconds = (o.EF.Elapsed + o.Optimal.Elapsed).Seconds()
	}
	return e.Emit(Event{
		Kind: kind,
		Pair: fmt.Sprintf("%d-%d", o.FirstLine, o.SecondLine),
		Data: c,
	})
}

// Done emits the run_done event.
func (e *Emitter) Done(d RunDone) error {
	return e.Emit(Event{Kind: KindRunDone, Data: d})
}

// Close closes the underlying file, if the emitter opened one. Calling
// Close on a nil Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.closer.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
