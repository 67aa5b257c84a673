package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore keeps one directory per job under <baseDir>/jobs/<jobID>/. It
// needs no locks: checkpoints are replaced by rename.
type FSStore struct {
	baseDir string
}

// NewFSStore creates baseDir if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir is the root passed to NewFSStore.
func (s *FSStore) BaseDir() string {
	return s.baseDir
}

// JobDir is where the job's checkpoint and rendered images live.
func (s *FSStore) JobDir(jobID string) string {
	return filepath.Join(s.baseDir, "jobs", jobID)
}

func (s *FSStore) checkpointPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), "checkpoint.json")
}

// SaveCheckpoint writes checkpoint.json via a temp file and rename.
func (s *FSStore) SaveCheckpoint(jobID string, checkpoint *Checkpoint) error {
	if jobID == "" {
		return errors.New("jobID cannot be empty")
	}
	if checkpoint == nil {
		return errors.New("checkpoint cannot be nil")
	}

	if err := os.MkdirAll(s.JobDir(jobID), 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	final := s.checkpointPath(jobID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("Checkpoint saved", "job_id", jobID, "epoch", checkpoint.Epoch, "path", final)
	return nil
}

// LoadCheckpoint reads and decodes checkpoint.json.
func (s *FSStore) LoadCheckpoint(jobID string) (*Checkpoint, error) {
	if jobID == "" {
		return nil, errors.New("jobID cannot be empty")
	}

	path := s.checkpointPath(jobID)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{JobID: jobID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	slog.Debug("Checkpoint loaded", "job_id", jobID, "path", path)
	return &checkpoint, nil
}

// ListCheckpoints scans the jobs directory, newest checkpoint first.
func (s *FSStore) ListCheckpoints() ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, "jobs"))
	if errors.Is(err, fs.ErrNotExist) {
		return []CheckpointInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	infos := []CheckpointInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID := entry.Name()
		if _, err := os.Stat(s.checkpointPath(jobID)); err != nil {
			continue
		}

		checkpoint, err := s.LoadCheckpoint(jobID)
		if err != nil {
			slog.Warn("Failed to load checkpoint for listing", "job_id", jobID, "error", err)
			continue
		}
		infos = append(infos, checkpoint.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	slog.Debug("Listed checkpoints", "count", len(infos))
	return infos, nil
}

// DeleteCheckpoint removes the whole job directory.
func (s *FSStore) DeleteCheckpoint(jobID string) error {
	if jobID == "" {
		return errors.New("jobID cannot be empty")
	}

	dir := s.JobDir(jobID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return &NotFoundError{JobID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Checkpoint deleted", "job_id", jobID, "path", dir)
	return nil
}
