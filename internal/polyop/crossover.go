package polyop

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

type scored = evo.Scored[fit.Genome]

// SinglePoint splits both parents at round(Point*len): child 1 takes A's
// polygons before the split and B's after, child 2 the complement.
type SinglePoint struct {
	Point float64
}

// NewSinglePoint requires point strictly inside (0, 1).
func NewSinglePoint(point float64) (*SinglePoint, error) {
	if !(point > 0 && point < 1) {
		return nil, &evo.ValidationError{Field: "CrossoverPoint", Reason: "must lie strictly between 0 and 1"}
	}
	return &SinglePoint{Point: point}, nil
}

func (s *SinglePoint) Cross(a, b scored, _ *rand.Rand) []fit.Genome {
	n := mustSameLength(a.Genome, b.Genome)
	split := int(math.Round(s.Point * float64(n)))

	c1, c2 := make(fit.Genome, n), make(fit.Genome, n)
	for i := 0; i < n; i++ {
		if i < split {
			c1[i], c2[i] = a.Genome[i].Clone(), b.Genome[i].Clone()
		} else {
			c1[i], c2[i] = b.Genome[i].Clone(), a.Genome[i].Clone()
		}
	}
	return []fit.Genome{c1, c2}
}

// Uniform decides every polygon index independently: with probability P
// child 1 inherits from A and child 2 from B, otherwise the reverse.
type Uniform struct {
	P float64
}

// NewUniform validates the inheritance probability.
func NewUniform(p float64) (*Uniform, error) {
	if err := evo.CheckProbability("UniformProbability", p); err != nil {
		return nil, err
	}
	return &Uniform{P: p}, nil
}

func (u *Uniform) Cross(a, b scored, rng *rand.Rand) []fit.Genome {
	n := mustSameLength(a.Genome, b.Genome)

	c1, c2 := make(fit.Genome, n), make(fit.Genome, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < u.P {
			c1[i], c2[i] = a.Genome[i].Clone(), b.Genome[i].Clone()
		} else {
			c1[i], c2[i] = b.Genome[i].Clone(), a.Genome[i].Clone()
		}
	}
	return []fit.Genome{c1, c2}
}

func mustSameLength(a, b fit.Genome) int {
	if len(a) != len(b) {
		panic(fmt.Sprintf("polyop: crossover of genomes with %d and %d polygons", len(a), len(b)))
	}
	return len(a)
}
