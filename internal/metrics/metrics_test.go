package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/rfplus/internal/batch"
	"github.com/papapumpkin/rfplus/internal/rfplus"
	"github.com/papapumpkin/rfplus/internal/tree"
)

func TestObservePhase(t *testing.T) {
	t.Parallel()
	r := New()

	r.ObservePhase(string(rfplus.PhaseGraft), 2*time.Millisecond)
	r.ObservePhase(string(rfplus.PhaseGraft), time.Millisecond)
	r.ObservePhase(string(rfplus.PhaseOptimize), time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.phases))
	n, err := testutil.GatherAndCount(r.registry, "rfplus_comparison_phase_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestObserveOutcome(t *testing.T) {
	t.Parallel()
	r := New()

	r.ObserveOutcome(batch.Outcome{RFPlus: 2, EFRFPlus: 4, RFMinus: 0, RFMinusOK: true})
	r.ObserveOutcome(batch.Outcome{RFPlus: 0, EFRFPlus: 0})
	r.ObserveOutcome(batch.Outcome{Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.comparisons.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.comparisons.WithLabelValues("failed")))
	// rf_plus, ef_rf_plus and a single rf_minus series.
	assert.Equal(t, 3, testutil.CollectAndCount(r.distances))
}

func TestRecorderAsObserver(t *testing.T) {
	t.Parallel()
	r := New()

	lines, err := tree.ParseAll(strings.NewReader("((1,2),(3,4));\n((5,2),(3,4));"))
	require.NoError(t, err)
	out, err := batch.Run(context.Background(), lines, batch.Options{Rooted: true, Observer: r, OnDone: r.ObserveOutcome})
	require.NoError(t, err)
	require.Len(t, out, 1)

	// Every phase of both completions reported a duration.
	assert.Equal(t, 5, testutil.CollectAndCount(r.phases))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.comparisons.WithLabelValues("ok")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()
	r := New()
	r.ObservePhase("color", time.Microsecond)

	path := filepath.Join(t.TempDir(), "rfplus.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rfplus_comparison_phase_seconds_count{phase="color"} 1`)

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.ErrorContains(t, err, "metrics: write")
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()
	var r *Recorder

	r.ObservePhase("color", time.Second)
	r.ObserveOutcome(batch.Outcome{})
	assert.NoError(t, r.WriteTextfile("/nonexistent/x.prom"))
	assert.Nil(t, r.Registry())
}
