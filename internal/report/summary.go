package report

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrEmptyRun is returned when summarizing a run without epochs.
var ErrEmptyRun = errors.New("report: run has no epochs")

// Summary condenses a run.
type Summary struct {
	Epochs         int           `json:"epochs"`
	Evaluations    int64         `json:"evaluations"`
	InitialFitness float64       `json:"initialFitness"`
	FinalFitness   float64       `json:"finalFitness"`
	BestEpoch      int           `json:"bestEpoch"`
	Duration       time.Duration `json:"duration"`
}

// Summarize reports the first and best fitness of a maximizing run.
func Summarize(history []EpochStats) (Summary, error) {
	if len(history) == 0 {
		return Summary{}, ErrEmptyRun
	}

	s := Summary{
		Epochs:         len(history),
		Evaluations:    history[len(history)-1].Evaluations,
		InitialFitness: history[0].BestFitness,
		FinalFitness:   history[0].BestFitness,
	}
	for _, h := range history {
		s.Duration += h.Elapsed
		if h.BestFitness > s.FinalFitness {
			s.FinalFitness, s.BestEpoch = h.BestFitness, h.Epoch
		}
	}
	return s, nil
}

// Improvement is the relative error reduction from the first epoch, in
// [0, 1] for a run that never regresses.
func (s Summary) Improvement() float64 {
	if s.InitialFitness == 0 {
		return 0
	}
	return (s.FinalFitness - s.InitialFitness) / -s.InitialFitness
}

func (s Summary) String() string {
	return fmt.Sprintf("%d epochs, %d evaluations, fitness %.0f -> %.0f (%.1f%% better, best at epoch %d) in %v",
		s.Epochs, s.Evaluations, s.InitialFitness, s.FinalFitness, 100*s.Improvement(), s.BestEpoch, s.Duration.Round(time.Millisecond))
}

// LogValue lets slog print the summary as a group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("epochs", s.Epochs),
		slog.Int64("evaluations", s.Evaluations),
		slog.Float64("initial_fitness", s.InitialFitness),
		slog.Float64("final_fitness", s.FinalFitness),
		slog.Int("best_epoch", s.BestEpoch),
		slog.Duration("duration", s.Duration),
	)
}
