package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/evopolyfit/internal/fit"
)

// JobConfig holds the run settings a checkpoint must stay compatible with.
// This avoids import cycles with the pipeline and server packages.
type JobConfig struct {
	RefPath            string `json:"refPath"`
	MaxSize            int    `json:"maxSize,omitempty"` // Longest reference side after downscaling (0 = original)
	Polygons           int    `json:"polygons"`
	Vertices           int    `json:"vertices"`
	PopulationSize     int    `json:"populationSize"`
	Epochs             int    `json:"epochs"`
	Seed               int64  `json:"seed"`
	CheckpointInterval int    `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint is a saved run state that can be resumed later.
//
// Only the best genome is saved, not the population. On resume the first
// generation is seeded with the best genome and perturbed copies of it, so
// best fitness never regresses but the run is not an exact continuation.
type Checkpoint struct {
	// JobID is the unique identifier for this run
	JobID string `json:"jobId"`

	// Best is the fittest genome seen so far
	Best fit.Genome `json:"best"`

	// BestFitness is the fitness of Best (negated squared error, <= 0)
	BestFitness float64 `json:"bestFitness"`

	// InitialFitness is the best fitness of generation 0
	InitialFitness float64 `json:"initialFitness"`

	// Epoch is the number of completed epochs
	Epoch int `json:"epoch"`

	// Evaluations is the number of fitness evaluations so far
	Evaluations int64 `json:"evaluations"`

	Timestamp time.Time `json:"timestamp"`

	// Config is checked against the resuming run's settings
	Config JobConfig `json:"config"`
}

// CheckpointInfo is checkpoint metadata without the genome.
type CheckpointInfo struct {
	JobID       string    `json:"jobId"`
	BestFitness float64   `json:"bestFitness"`
	Epoch       int       `json:"epoch"`
	Evaluations int64     `json:"evaluations"`
	Timestamp   time.Time `json:"timestamp"`
	Polygons    int       `json:"polygons"`
	RefPath     string    `json:"refPath"`
}

// NewCheckpoint creates a checkpoint from run state. The genome is copied.
func NewCheckpoint(jobID string, best fit.Genome, bestFitness, initialFitness float64, epoch int, evaluations int64, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:          jobID,
		Best:           best.Clone(),
		BestFitness:    bestFitness,
		InitialFitness: initialFitness,
		Epoch:          epoch,
		Evaluations:    evaluations,
		Timestamp:      time.Now(),
		Config:         config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:       c.JobID,
		BestFitness: c.BestFitness,
		Epoch:       c.Epoch,
		Evaluations: c.Evaluations,
		Timestamp:   c.Timestamp,
		Polygons:    c.Config.Polygons,
		RefPath:     c.Config.RefPath,
	}
}

// Validate checks if the checkpoint has valid data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.Best) == 0 {
		return &ValidationError{Field: "Best", Reason: "cannot be empty"}
	}
	if c.BestFitness > 0 {
		return &ValidationError{Field: "BestFitness", Reason: "cannot be positive"}
	}
	if c.InitialFitness > 0 {
		return &ValidationError{Field: "InitialFitness", Reason: "cannot be positive"}
	}
	if c.Epoch < 0 {
		return &ValidationError{Field: "Epoch", Reason: "cannot be negative"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.RefPath == "" {
		return &ValidationError{Field: "Config.RefPath", Reason: "cannot be empty"}
	}
	if c.Config.Polygons <= 0 {
		return &ValidationError{Field: "Config.Polygons", Reason: "must be positive"}
	}
	if c.Config.Vertices < 3 {
		return &ValidationError{Field: "Config.Vertices", Reason: "must be at least 3"}
	}
	if c.Config.PopulationSize <= 0 {
		return &ValidationError{Field: "Config.PopulationSize", Reason: "must be positive"}
	}
	if len(c.Best) != c.Config.Polygons {
		return &ValidationError{
			Field:  "Best",
			Reason: fmt.Sprintf("length mismatch: expected %d polygons, got %d", c.Config.Polygons, len(c.Best)),
		}
	}
	for i, p := range c.Best {
		if len(p.Vertices) < 3 {
			return &ValidationError{Field: "Best", Reason: fmt.Sprintf("polygon %d has %d vertices", i, len(p.Vertices))}
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// The reference, its scaling and the genome shape must match.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.RefPath != config.RefPath {
		return &CompatibilityError{
			Field:    "RefPath",
			Expected: c.Config.RefPath,
			Actual:   config.RefPath,
		}
	}
	if c.Config.MaxSize != config.MaxSize {
		return &CompatibilityError{
			Field:    "MaxSize",
			Expected: fmt.Sprintf("%d", c.Config.MaxSize),
			Actual:   fmt.Sprintf("%d", config.MaxSize),
		}
	}
	if c.Config.Polygons != config.Polygons {
		return &CompatibilityError{
			Field:    "Polygons",
			Expected: fmt.Sprintf("%d", c.Config.Polygons),
			Actual:   fmt.Sprintf("%d", config.Polygons),
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
