package evo

import "errors"

var (
	// ErrInvalidConfig is wrapped by every ValidationError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoMutation is the panic value when a mutation chain step receives an
	// absent result from the step before it.
	ErrNoMutation = errors.New("mutation chain: previous step produced no individual")

	// ErrNegativeFitness is the panic value when roulette selection meets a
	// negative fitness or a non-positive fitness total.
	ErrNegativeFitness = errors.New("roulette selection requires non-negative fitness with a positive total")
)

// ValidationError reports a construction-time configuration error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// Unwrap lets errors.Is(err, ErrInvalidConfig) match any ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// CheckProbability validates that p lies in [0, 1].
func CheckProbability(field string, p float64) error {
	if p < 0 || p > 1 || p != p {
		return &ValidationError{Field: field, Reason: "must be a probability in [0, 1]"}
	}
	return nil
}
