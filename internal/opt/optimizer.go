package opt

import "errors"

// ErrInvalidProblem is returned when a Problem cannot be optimized.
var ErrInvalidProblem = errors.New("invalid optimization problem")

// Problem is a box-constrained minimization over Dim parameters. Every
// dimension shares the [Lower, Upper] range.
type Problem struct {
	Eval  func([]float64) float64
	Lower float64
	Upper float64
	Dim   int
}

// Validate checks the problem shape.
func (p Problem) Validate() error {
	switch {
	case p.Eval == nil:
		return errors.Join(ErrInvalidProblem, errors.New("nil objective"))
	case p.Dim < 1:
		return errors.Join(ErrInvalidProblem, errors.New("dimension must be positive"))
	case p.Lower >= p.Upper:
		return errors.Join(ErrInvalidProblem, errors.New("lower bound must be below upper bound"))
	}
	return nil
}

// Clamp forces x into the problem bounds in place.
func (p Problem) Clamp(x []float64) []float64 {
	for i, v := range x {
		x[i] = min(p.Upper, max(p.Lower, v))
	}
	return x
}

// Optimizer defines an optimization algorithm.
type Optimizer interface {
	// Minimize returns the best parameters found and their cost.
	Minimize(p Problem) ([]float64, float64, error)
}
