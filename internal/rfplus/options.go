package rfplus

import (
	"log/slog"
	"time"
)

// Phase names a timed stage of a completion.
type Phase string

// Phases reported to an Observer and recorded in Timings.
const (
	PhaseIndex       Phase = "index"
	PhaseColor       Phase = "color"
	PhaseGraft       Phase = "graft"
	PhaseOptimize    Phase = "optimize"
	PhaseReconstruct Phase = "reconstruct"
)

// Observer receives the elapsed time of each phase as it finishes. Calls
// come from the goroutine running the comparison.
type Observer interface {
	ObservePhase(phase string, elapsed time.Duration)
}

// Option configures a Comparison.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
}

// WithLogger sets the logger used for phase-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers an Observer for phase timings.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock replaces the time source used for phase timings.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Timings holds the elapsed duration of each phase of one completion.
type Timings struct {
	Index       time.Duration
	Color       time.Duration
	Graft       time.Duration
	Optimize    time.Duration
	Reconstruct time.Duration
}

// Total sums all phases.
func (t Timings) Total() time.Duration {
	return t.Index + t.Color + t.Graft + t.Optimize + t.Reconstruct
}

func (t *Timings) add(p Phase, d time.Duration) {
	switch p {
	case PhaseIndex:
		t.Index += d
	case PhaseColor:
		t.Color += d
	case PhaseGraft:
		t.Graft += d
	case PhaseOptimize:
		t.Optimize += d
	case PhaseReconstruct:
		t.Reconstruct += d
	}
}

// stopwatch attributes elapsed time to phases between successive laps.
type stopwatch struct {
	opts    *options
	last    time.Time
	timings Timings
}

func newStopwatch(o *options) *stopwatch {
	return &stopwatch{opts: o, last: o.now()}
}

func (s *stopwatch) lap(p Phase) {
	now := s.opts.now()
	d := now.Sub(s.last)
	s.last = now
	s.timings.add(p, d)
	if s.opts.observer != nil {
		s.opts.observer.ObservePhase(string(p), d)
	}
}
