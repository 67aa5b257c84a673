package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/imageio"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// BestImage is the file name of the best-so-far rendering.
const BestImage = "best.png"

// GenerationImage names the periodic rendering of an epoch's best genome.
func GenerationImage(epoch int) string {
	return fmt.Sprintf("generation_%d.png", epoch)
}

// Recorder is the output sink of a run. Its Stats method is the engine's
// statistics hook: it builds the epoch record and then, as configured,
// renders images, appends trace and history entries, updates metrics and
// calls OnEpoch. Sink failures are logged and kept in Err; they never stop
// the run.
type Recorder struct {
	RunID    string
	Renderer fit.Renderer

	// OutDir receives best.png and generation_<epoch>.png. Empty disables
	// rendering.
	OutDir      string
	RenderEvery int // 0 disables periodic renders

	Trace   *store.TraceWriter
	History store.History
	Metrics *Metrics

	// A resumed run numbers its records after the run it continues:
	// engine epoch e is recorded as EpochOffset+e and EvaluationOffset is
	// added to every evaluation count.
	EpochOffset      int
	EvaluationOffset int64

	// OnEpoch runs last, after the record is complete. It must not call
	// back into the Recorder.
	OnEpoch func(s EpochStats, improved bool)

	mu        sync.Mutex
	start     time.Time
	hasBest   bool
	best      float64
	bestG     fit.Genome
	prevEvals int64
	err       error
}

// Stats implements evo.StatsFactory.
func (r *Recorder) Stats(epoch int, elapsed time.Duration, evaluations int64, best evo.Scored[fit.Genome], population []evo.Scored[fit.Genome]) EpochStats {
	s := NewEpochStats(r.EpochOffset+epoch, elapsed, r.EvaluationOffset+evaluations, best, population)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.start.IsZero() {
		r.start = time.Now().Add(-elapsed)
		r.prevEvals = r.EvaluationOffset
	}
	improved := !r.hasBest || s.BestFitness > r.best
	if improved {
		r.hasBest, r.best, r.bestG = true, s.BestFitness, s.Best
	}

	if r.OutDir != "" && r.Renderer != nil {
		if r.RenderEvery > 0 && s.Epoch%r.RenderEvery == 0 {
			r.render(GenerationImage(s.Epoch), s.Best)
		}
		if improved {
			r.render(BestImage, s.Best)
		}
	}

	entry := store.TraceEntry{
		Epoch:       s.Epoch,
		BestFitness: s.BestFitness,
		MeanFitness: s.MeanFitness,
		StdDev:      s.StdDev,
		Evaluations: s.Evaluations,
		ElapsedMS:   time.Since(r.start).Milliseconds(),
		Timestamp:   time.Now(),
		Improved:    improved,
	}
	if r.Trace != nil {
		r.keep(r.Trace.Write(entry), "trace")
	}
	if r.History != nil {
		r.keep(r.History.Append(context.Background(), r.RunID, entry), "history")
	}
	if r.Metrics != nil {
		r.Metrics.Observe(r.RunID, s, r.prevEvals)
	}
	r.prevEvals = s.Evaluations

	if r.OnEpoch != nil {
		r.OnEpoch(s, improved)
	}
	return s
}

func (r *Recorder) render(name string, g fit.Genome) {
	path := filepath.Join(r.OutDir, name)
	r.keep(imageio.Save(path, r.Renderer.Decode(g)), "render "+name)
}

func (r *Recorder) keep(err error, what string) {
	if err == nil {
		return
	}
	slog.Warn("Recorder output failed", "run_id", r.RunID, "output", what, "error", err)
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", what, err)
	}
}

// Best returns the best genome recorded so far.
func (r *Recorder) Best() (fit.Genome, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bestG, r.best, r.hasBest
}

// Err returns the first sink failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
