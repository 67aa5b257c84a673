// Package report turns engine epochs into records, images, traces, plots
// and metrics.
package report

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

// EpochStats is the record kept for every epoch. It holds the best genome
// but never the population.
type EpochStats struct {
	Epoch       int           `json:"epoch"`
	Elapsed     time.Duration `json:"elapsed"` // time spent producing this epoch
	Evaluations int64         `json:"evaluations"`
	BestFitness float64       `json:"bestFitness"`
	MeanFitness float64       `json:"meanFitness"`
	StdDev      float64       `json:"stdDev"`
	Best        fit.Genome    `json:"-"`
}

// NewEpochStats is an evo.StatsFactory for polygon genomes.
func NewEpochStats(epoch int, elapsed time.Duration, evaluations int64, best evo.Scored[fit.Genome], population []evo.Scored[fit.Genome]) EpochStats {
	values := make([]float64, len(population))
	for i, ind := range population {
		values[i] = ind.Fitness
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = 0
	}

	return EpochStats{
		Epoch:       epoch,
		Elapsed:     elapsed,
		Evaluations: evaluations,
		BestFitness: best.Fitness,
		MeanFitness: mean,
		StdDev:      std,
		Best:        best.Genome,
	}
}

// BestFitness extracts the best fitness, for evo.NewStagnation.
func BestFitness(s EpochStats) float64 {
	return s.BestFitness
}

// Factory is the StatsFactory type the pipeline hands to the engine.
type Factory = evo.StatsFactory[fit.Genome, EpochStats]
