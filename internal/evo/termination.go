package evo

import (
	"context"
	"sync"
)

// MaxEpochs continues until n epochs have been recorded.
func MaxEpochs[S any](n int) Termination[S] {
	return TerminationFunc[S](func(history []S) bool {
		return len(history) < n
	})
}

// Stagnation stops once the best fitness has not improved significantly for
// the configured patience. It is stateful: use one value per run.
type Stagnation[S any] struct {
	fitness func(S) float64

	mu      sync.Mutex
	tracker *ConvergenceTracker
	seen    int
	stalled bool
}

// NewStagnation builds a stagnation check that reads each record's best
// fitness through fitness.
func NewStagnation[S any](config ConvergenceConfig, o Objective, fitness func(S) float64) (*Stagnation[S], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Stagnation[S]{fitness: fitness, tracker: NewConvergenceTracker(config, o)}, nil
}

func (s *Stagnation[S]) Continue(history []S) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ; s.seen < len(history) && !s.stalled; s.seen++ {
		s.stalled = s.tracker.Update(s.fitness(history[s.seen]))
	}
	return !s.stalled
}

// UntilDone continues while ctx is live and inner agrees. This is how
// callers cancel a run; the engine itself never looks at a context.
func UntilDone[S any](ctx context.Context, inner Termination[S]) Termination[S] {
	return TerminationFunc[S](func(history []S) bool {
		if ctx.Err() != nil {
			return false
		}
		return inner.Continue(history)
	})
}

// All continues only while every condition does. Every condition sees every
// call, so stateful conditions stay in step.
func All[S any](conds ...Termination[S]) Termination[S] {
	return TerminationFunc[S](func(history []S) bool {
		ok := true
		for _, c := range conds {
			if !c.Continue(history) {
				ok = false
			}
		}
		return ok
	})
}
