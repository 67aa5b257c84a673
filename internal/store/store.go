package store

import "context"

// Store persists run checkpoints. Implementations must be safe for
// concurrent use.
//
// Load and Delete return ErrNotFound (match with errors.Is) for unknown jobs.
// Other failures are wrapped with fmt.Errorf("context: %w", err).
type Store interface {
	// SaveCheckpoint replaces the job's checkpoint atomically, so a crash
	// mid-write leaves the previous checkpoint readable.
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint reads the job's checkpoint.
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for every readable checkpoint.
	// Unreadable ones are skipped.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint and every artifact of the job:
	// checkpoint.json, best.png, generation_*.png and trace.jsonl.
	DeleteCheckpoint(jobID string) error
}

// History records per-epoch statistics for a run so they can be queried
// after the fact. Entries come back in insertion order.
type History interface {
	Append(ctx context.Context, runID string, entry TraceEntry) error
	Entries(ctx context.Context, runID string) ([]TraceEntry, error)
	Close() error
}

// ErrNotFound is returned when a requested checkpoint does not exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing checkpoint error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
