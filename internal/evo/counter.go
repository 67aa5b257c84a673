package evo

import "sync/atomic"

// Counter wraps an Evaluator and counts every call. It is safe for
// concurrent use; share one instance between the engine and any operator
// that evaluates trial genomes so the count covers all of them.
type Counter[G any] struct {
	inner Evaluator[G]
	n     atomic.Int64
}

// NewCounter wraps e.
func NewCounter[G any](e Evaluator[G]) *Counter[G] {
	return &Counter[G]{inner: e}
}

func (c *Counter[G]) Evaluate(g G) float64 {
	c.n.Add(1)
	return c.inner.Evaluate(g)
}

// Count returns the number of evaluations so far.
func (c *Counter[G]) Count() int64 {
	return c.n.Load()
}
