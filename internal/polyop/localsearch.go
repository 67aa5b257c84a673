package polyop

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

// DefaultLocalSearchTournament is the number of removal trials per mutation.
const DefaultLocalSearchTournament = 10

// LocalSearch couples mutation to the error landscape. With probability Rate
// it finds the worst grid segment of the decoded genome, picks the polygon
// whose removal helps fitness most among TournamentSize sampled ones, and
// replaces it with a polygon inside that segment coloured with the segment's
// majority reference colour.
type LocalSearch struct {
	Rate           float64
	Band           fit.AlphaBand
	Vertices       int
	TournamentSize int

	Fitness   *fit.Fitness
	Renderer  fit.Renderer
	Evaluator evo.Evaluator[fit.Genome]
	Objective evo.Objective
}

// NewLocalSearch wires the operator. eval should be the run's shared counter
// so that removal trials are counted.
func NewLocalSearch(rate float64, band fit.AlphaBand, vertices int, f *fit.Fitness, r fit.Renderer, eval evo.Evaluator[fit.Genome]) (*LocalSearch, error) {
	if err := evo.CheckProbability("MutationRate", rate); err != nil {
		return nil, err
	}
	if err := band.Validate(); err != nil {
		return nil, &evo.ValidationError{Field: "AlphaBand", Reason: err.Error()}
	}
	if vertices < 3 {
		return nil, &evo.ValidationError{Field: "Vertices", Reason: "must be at least 3"}
	}
	return &LocalSearch{
		Rate:           rate,
		Band:           band,
		Vertices:       vertices,
		TournamentSize: DefaultLocalSearchTournament,
		Fitness:        f,
		Renderer:       r,
		Evaluator:      eval,
		Objective:      evo.Maximize,
	}, nil
}

func (m *LocalSearch) Mutate(g fit.Genome, rng *rand.Rand) (fit.Genome, bool) {
	if len(g) == 0 || rng.Float64() >= m.Rate {
		return g.Clone(), true
	}

	segment := m.Fitness.WorstSegment(m.Renderer.Decode(g))
	weakest := m.weakest(g, rng)

	out := g.Clone()
	out[weakest] = m.polygonIn(segment, rng)

	slog.Debug("Local search replaced polygon",
		"index", weakest,
		"segment_row", segment.Row,
		"segment_col", segment.Col,
	)
	return out, true
}

// weakest runs a reverse tournament: the sampled polygon whose removal
// scores best is the one hurting fitness most.
func (m *LocalSearch) weakest(g fit.Genome, rng *rand.Rand) int {
	trials := max(1, m.TournamentSize)
	best := -1
	var bestFit float64
	for t := 0; t < trials; t++ {
		i := rng.Intn(len(g))
		f := m.Evaluator.Evaluate(g.Without(i))
		if best < 0 || m.Objective.Better(f, bestFit) {
			best, bestFit = i, f
		}
	}
	return best
}

func (m *LocalSearch) polygonIn(s fit.Segment, rng *rand.Rand) fit.Polygon {
	pts := make([]fit.Point, m.Vertices)
	for j := range pts {
		pts[j] = fit.Point{X: s.Col + rng.Intn(s.Width), Y: s.Row + rng.Intn(s.Height)}
	}
	colour := m.Fitness.MajorityColour(s)
	colour.A = m.Band.Sample(rng)
	return fit.Polygon{Vertices: pts, Colour: colour}
}
