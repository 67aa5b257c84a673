package evo

import "fmt"

// Generational replaces the whole population every epoch.
type Generational[G any] struct{}

func (Generational[G]) Survivors([]Scored[G]) []Scored[G] {
	return nil
}

// Elitism carries the N best individuals forward unchanged.
type Elitism[G any] struct {
	N         int
	Objective Objective
}

// NewElitism validates n against the population size.
func NewElitism[G any](n, populationSize int, o Objective) (*Elitism[G], error) {
	e := &Elitism[G]{N: n, Objective: o}
	if err := e.ValidatePopulation(populationSize); err != nil {
		return nil, err
	}
	return e, nil
}

// ValidatePopulation rejects counts that would leave no room for children.
func (e *Elitism[G]) ValidatePopulation(size int) error {
	if e.N < 0 {
		return &ValidationError{Field: "EliteCount", Reason: "cannot be negative"}
	}
	if e.N >= size {
		return &ValidationError{Field: "EliteCount", Reason: fmt.Sprintf("must be below population size %d", size)}
	}
	return nil
}

// Survivors returns the top N. It panics if N is not below len(pop).
func (e *Elitism[G]) Survivors(pop []Scored[G]) []Scored[G] {
	if e.N >= len(pop) {
		panic(fmt.Sprintf("evo: elitism count %d must be below population size %d", e.N, len(pop)))
	}
	return Ranked(e.Objective, pop)[:e.N]
}
