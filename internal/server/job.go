package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/pipeline"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job can no longer change.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobRequest is the payload of POST /api/v1/jobs. Options fields left out of
// the JSON keep their defaults.
type JobRequest struct {
	RefPath            string           `json:"refPath"`
	MaxSize            int              `json:"maxSize,omitempty"`
	CheckpointInterval int              `json:"checkpointInterval,omitempty"` // seconds, 0 = only at the end
	ResumeFrom         string           `json:"resumeFrom,omitempty"`         // job ID of a saved checkpoint
	Options            pipeline.Options `json:"options"`
}

// NewJobRequest returns a request carrying the default options.
func NewJobRequest() JobRequest {
	return JobRequest{Options: pipeline.DefaultOptions()}
}

// Validate checks the request before a job is created.
func (r *JobRequest) Validate() error {
	if r.RefPath == "" {
		return errors.New("refPath is required")
	}
	if r.MaxSize < 0 {
		return errors.New("maxSize cannot be negative")
	}
	if r.CheckpointInterval < 0 {
		return errors.New("checkpointInterval cannot be negative")
	}
	return r.Options.Validate()
}

// StoreConfig is the checkpoint view of the request.
func (r *JobRequest) StoreConfig() store.JobConfig {
	return store.JobConfig{
		RefPath:            r.RefPath,
		MaxSize:            r.MaxSize,
		Polygons:           r.Options.Polygons,
		Vertices:           r.Options.Vertices,
		PopulationSize:     r.Options.PopulationSize,
		Epochs:             r.Options.Epochs,
		Seed:               r.Options.Seed,
		CheckpointInterval: r.CheckpointInterval,
	}
}

// Job is the externally visible state of one run.
type Job struct {
	ID             string     `json:"id"`
	State          JobState   `json:"state"`
	Request        JobRequest `json:"request"`
	Epoch          int        `json:"epoch"`
	BestFitness    float64    `json:"bestFitness"`
	InitialFitness float64    `json:"initialFitness"`
	MeanFitness    float64    `json:"meanFitness"`
	Evaluations    int64      `json:"evaluations"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Error          string     `json:"error,omitempty"`

	Best fit.Genome `json:"-"`

	// Evaluations counted before a resumed job started; excluded from its
	// throughput.
	resumedEvaluations int64
}

// Elapsed is the run time so far, or the total once the job has ended.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// runtime holds what a running job needs besides its visible state.
type runtime struct {
	pipe   *pipeline.Pipeline
	cancel context.CancelFunc
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	runtimes    map[string]*runtime
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		runtimes:    make(map[string]*runtime),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for req.
func (jm *JobManager) CreateJob(req JobRequest) Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		StartTime: time.Now(),
	}
	jm.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of the job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns snapshots of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	running := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			running = append(running, *job)
		}
	}
	return running
}

func (jm *JobManager) attach(id string, rt *runtime) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.runtimes[id] = rt
}

func (jm *JobManager) setPipeline(id string, pipe *pipeline.Pipeline) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if rt, ok := jm.runtimes[id]; ok {
		rt.pipe = pipe
	} else {
		jm.runtimes[id] = &runtime{pipe: pipe}
	}
}

func (jm *JobManager) pipelineFor(id string) (*pipeline.Pipeline, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	rt, ok := jm.runtimes[id]
	if !ok || rt.pipe == nil {
		return nil, false
	}
	return rt.pipe, true
}

// Cancel stops a pending or running job after its current epoch.
func (jm *JobManager) Cancel(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.State)
	}
	if rt, ok := jm.runtimes[id]; ok && rt.cancel != nil {
		rt.cancel()
	}
	return nil
}

// CancelAll stops every job; used on shutdown.
func (jm *JobManager) CancelAll() {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	for _, rt := range jm.runtimes {
		if rt.cancel != nil {
			rt.cancel()
		}
	}
}
