package report

import (
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/store"
)

type scored = evo.Scored[fit.Genome]

func triangle(shade uint8) fit.Genome {
	return fit.Genome{{
		Vertices: []fit.Point{{X: 0, Y: 0}, {X: 7, Y: 0}, {X: 0, Y: 7}},
		Colour:   color.NRGBA{R: shade, G: shade, B: shade, A: 255},
	}}
}

func population(fitness ...float64) []scored {
	pop := make([]scored, len(fitness))
	for i, f := range fitness {
		pop[i] = scored{Genome: triangle(uint8(i)), Fitness: f}
	}
	return pop
}

func TestNewEpochStats(t *testing.T) {
	pop := population(-10, -20, -30, -40)
	s := NewEpochStats(3, time.Second, 99, pop[0], pop)

	assert.Equal(t, 3, s.Epoch)
	assert.Equal(t, int64(99), s.Evaluations)
	assert.Equal(t, -10.0, s.BestFitness)
	assert.InDelta(t, -25.0, s.MeanFitness, 1e-9)
	assert.InDelta(t, math.Sqrt(500.0/3), s.StdDev, 1e-9)
	assert.True(t, s.Best.Equal(pop[0].Genome))
	assert.Equal(t, -10.0, BestFitness(s))
}

func TestSummarize(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrEmptyRun)

	history := []EpochStats{
		{Epoch: 0, BestFitness: -1000, Evaluations: 50, Elapsed: time.Millisecond},
		{Epoch: 1, BestFitness: -600, Evaluations: 100, Elapsed: time.Millisecond},
		{Epoch: 2, BestFitness: -250, Evaluations: 150, Elapsed: time.Millisecond},
		{Epoch: 3, BestFitness: -250, Evaluations: 200, Elapsed: time.Millisecond},
	}
	s, err := Summarize(history)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Epochs)
	assert.Equal(t, int64(200), s.Evaluations)
	assert.Equal(t, -1000.0, s.InitialFitness)
	assert.Equal(t, -250.0, s.FinalFitness)
	assert.Equal(t, 2, s.BestEpoch, "ties keep the first epoch reaching the best")
	assert.Equal(t, 4*time.Millisecond, s.Duration)
	assert.InDelta(t, 0.75, s.Improvement(), 1e-12)
	assert.Contains(t, s.String(), "75.0% better")
}

func TestRecorderRendersAndTraces(t *testing.T) {
	dir := t.TempDir()
	trace, err := store.NewTraceWriter(dir, false)
	require.NoError(t, err)
	history := store.NewMemoryHistory()

	var calls []bool
	rec := &Recorder{
		RunID:       "run-1",
		Renderer:    fit.NewDecoder(fit.Canvas{Width: 8, Height: 8}),
		OutDir:      dir,
		RenderEvery: 2,
		Trace:       trace,
		History:     history,
		OnEpoch:     func(_ EpochStats, improved bool) { calls = append(calls, improved) },
	}

	bests := []float64{-100, -100, -50, -60, -10}
	for epoch, b := range bests {
		pop := population(b, b-5)
		rec.Stats(epoch, time.Millisecond, int64(10*(epoch+1)), pop[0], pop)
	}
	require.NoError(t, trace.Close())
	require.NoError(t, rec.Err())

	assert.Equal(t, []bool{true, false, true, false, true}, calls)
	for _, name := range []string{GenerationImage(0), GenerationImage(2), GenerationImage(4), BestImage} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	for _, name := range []string{GenerationImage(1), GenerationImage(3)} {
		assert.NoFileExists(t, filepath.Join(dir, name))
	}

	g, f, ok := rec.Best()
	require.True(t, ok)
	assert.Equal(t, -10.0, f)
	assert.True(t, g.Equal(triangle(0)))

	r, err := store.NewTraceReader(dir)
	require.NoError(t, err)
	defer r.Close()
	entries, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.True(t, entries[2].Improved)
	assert.False(t, entries[3].Improved)
	assert.Equal(t, int64(50), entries[4].Evaluations)

	stored, err := history.Entries(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestRecorderContinuesNumbering(t *testing.T) {
	dir := t.TempDir()
	trace, err := store.NewTraceWriter(dir, false)
	require.NoError(t, err)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	var epochs []int
	rec := &Recorder{
		RunID:            "resumed",
		Renderer:         fit.NewDecoder(fit.Canvas{Width: 8, Height: 8}),
		OutDir:           dir,
		RenderEvery:      2,
		Trace:            trace,
		Metrics:          m,
		OnEpoch:          func(s EpochStats, _ bool) { epochs = append(epochs, s.Epoch) },
		EpochOffset:      5,
		EvaluationOffset: 1000,
	}

	var history []EpochStats
	for epoch := 0; epoch < 3; epoch++ {
		pop := population(-10, -20)
		history = append(history, rec.Stats(epoch, time.Millisecond, int64(10*(epoch+1)), pop[0], pop))
	}
	require.NoError(t, trace.Close())
	require.NoError(t, rec.Err())

	assert.Equal(t, []int{5, 6, 7}, epochs)
	assert.Equal(t, int64(1030), history[2].Evaluations)
	assert.FileExists(t, filepath.Join(dir, GenerationImage(6)))
	assert.NoFileExists(t, filepath.Join(dir, GenerationImage(0)))
	assert.NoFileExists(t, filepath.Join(dir, GenerationImage(2)))

	r, err := store.NewTraceReader(dir)
	require.NoError(t, err)
	defer r.Close()
	entries, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 5, entries[0].Epoch)
	assert.Equal(t, int64(1010), entries[0].Evaluations)

	// Only this run's evaluations reach the counter.
	assert.Equal(t, 30.0, testutil.ToFloat64(m.evaluations.WithLabelValues("resumed")))
}

func TestRecorderKeepsFirstError(t *testing.T) {
	// A regular file where the output directory should be.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	rec := &Recorder{
		Renderer: fit.NewDecoder(fit.Canvas{Width: 4, Height: 4}),
		OutDir:   filepath.Join(blocker, "out"),
	}
	pop := population(-1, -2)
	assert.NotPanics(t, func() {
		rec.Stats(0, 0, 2, pop[0], pop)
	})
	assert.Error(t, rec.Err())
}

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.Observe("a", EpochStats{Evaluations: 50, BestFitness: -9, MeanFitness: -12, Elapsed: time.Millisecond}, 0)
	m.Observe("a", EpochStats{Evaluations: 120, BestFitness: -4, MeanFitness: -8, Elapsed: time.Millisecond}, 50)

	assert.Equal(t, 120.0, testutil.ToFloat64(m.evaluations.WithLabelValues("a")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.epochs.WithLabelValues("a")))
	assert.Equal(t, -4.0, testutil.ToFloat64(m.best.WithLabelValues("a")))
	assert.Equal(t, -8.0, testutil.ToFloat64(m.mean.WithLabelValues("a")))

	m.Forget("a")
	assert.Equal(t, 1, testutil.CollectAndCount(m.evaluations))
	assert.Equal(t, 0, testutil.CollectAndCount(m.best))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestPlotFitness(t *testing.T) {
	assert.ErrorIs(t, PlotFitness(nil, "x", filepath.Join(t.TempDir(), "p.png")), ErrEmptyRun)

	history := []EpochStats{
		{Epoch: 0, BestFitness: -100, MeanFitness: -150},
		{Epoch: 1, BestFitness: -80, MeanFitness: -120},
		{Epoch: 2, BestFitness: -75, MeanFitness: -90},
	}
	path := filepath.Join(t.TempDir(), "fitness.png")
	require.NoError(t, PlotFitness(history, "run", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
