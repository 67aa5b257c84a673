package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/imageio"
	"github.com/cwbudde/evopolyfit/internal/pipeline"
	"github.com/cwbudde/evopolyfit/internal/report"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// DiffImage is the file name of the error map saved next to best.png.
const DiffImage = "diff.png"

// worker holds what background runs share with the server.
type worker struct {
	jobs    *JobManager
	store   *store.FSStore // nil disables checkpoints and artifacts
	history store.History  // optional
	metrics *report.Metrics
}

// runJob executes one job to completion, cancellation or failure.
func (wk *worker) runJob(ctx context.Context, jobID string) error {
	job, exists := wk.jobs.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	req := job.Request

	if err := wk.jobs.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "ref", req.RefPath)

	pipe, from, err := wk.prepare(req)
	if err != nil {
		wk.markFailed(jobID, err)
		return err
	}
	wk.jobs.setPipeline(jobID, pipe)

	out := pipeline.Output{
		RunID:   jobID,
		History: wk.history,
		Metrics: wk.metrics,
	}
	if from != nil {
		out.FirstEpoch, out.PriorEvaluations = from.Epoch+1, from.Evaluations
		wk.jobs.UpdateJob(jobID, func(j *Job) {
			j.InitialFitness = from.InitialFitness
			j.resumedEvaluations = from.Evaluations
		})
	}
	if wk.store != nil {
		dir := wk.store.JobDir(jobID)
		trace, err := store.NewTraceWriter(dir, false)
		if err != nil {
			wk.markFailed(jobID, err)
			return err
		}
		defer trace.Close()
		out.Dir, out.Trace = dir, trace
	}

	cp := &checkpointer{
		worker:   wk,
		jobID:    jobID,
		config:   req.StoreConfig(),
		pipe:     pipe,
		interval: time.Duration(req.CheckpointInterval) * time.Second,
		last:     time.Now(),
	}
	out.OnEpoch = func(s report.EpochStats, improved bool) {
		wk.jobs.UpdateJob(jobID, func(j *Job) {
			j.Epoch = s.Epoch
			j.MeanFitness = s.MeanFitness
			j.Evaluations = s.Evaluations
			if s.Epoch == 0 {
				j.InitialFitness = s.BestFitness
			}
			if improved {
				j.BestFitness = s.BestFitness
				j.Best = s.Best
			}
		})
		wk.jobs.broadcaster.Broadcast(ProgressEvent{
			JobID:       jobID,
			State:       StateRunning,
			Epoch:       s.Epoch,
			BestFitness: s.BestFitness,
			MeanFitness: s.MeanFitness,
			Evaluations: s.Evaluations,
			Improved:    improved,
			Timestamp:   time.Now(),
		})
		if out.Trace != nil && s.Epoch%10 == 0 {
			out.Trace.Flush()
		}
		cp.maybeSave()
	}

	start := time.Now()
	res, err := pipe.Run(ctx, out)
	if res == nil {
		wk.markFailed(jobID, err)
		return err
	}
	if err != nil {
		slog.Warn("Job outputs incomplete", "job_id", jobID, "error", err)
	}
	if wk.metrics != nil {
		wk.metrics.Forget(jobID)
	}

	if err := cp.save(); err != nil {
		slog.Error("Failed to save final checkpoint", "job_id", jobID, "error", err)
	}

	state := StateCompleted
	if res.Cancelled {
		state = StateCancelled
	}
	last := res.History[len(res.History)-1]
	end := time.Now()
	wk.jobs.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Best = res.Best
		j.BestFitness = res.BestFitness
		j.Epoch = last.Epoch
		j.Evaluations = last.Evaluations
		j.EndTime = &end
	})

	slog.Info("Job finished",
		"job_id", jobID,
		"state", state,
		"elapsed", time.Since(start),
		"summary", res.Summary,
		"evaluations_per_second", float64(res.Evaluations)/time.Since(start).Seconds(),
	)

	wk.jobs.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       state,
		Epoch:       last.Epoch,
		BestFitness: res.BestFitness,
		Evaluations: last.Evaluations,
		Timestamp:   time.Now(),
	})
	if res.Cancelled {
		return ctx.Err()
	}
	return nil
}

// prepare loads the reference and builds the pipeline, seeding it from a
// saved checkpoint when the request asks to resume. That checkpoint is
// returned too; it is nil for a fresh run.
func (wk *worker) prepare(req JobRequest) (*pipeline.Pipeline, *store.Checkpoint, error) {
	ref, err := imageio.Load(req.RefPath, req.MaxSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference: %w", err)
	}
	pipe, err := pipeline.Build(ref, req.Options)
	if err != nil {
		return nil, nil, err
	}
	if req.ResumeFrom == "" {
		return pipe, nil, nil
	}

	if wk.store == nil {
		return nil, nil, errors.New("resume requires a checkpoint store")
	}
	checkpoint, err := wk.store.LoadCheckpoint(req.ResumeFrom)
	if err != nil {
		return nil, nil, err
	}
	if err := checkpoint.IsCompatible(req.StoreConfig()); err != nil {
		return nil, nil, err
	}
	if err := pipe.Resume(checkpoint.Best); err != nil {
		return nil, nil, err
	}
	slog.Info("Resuming from checkpoint", "from", req.ResumeFrom, "best_fitness", checkpoint.BestFitness, "epoch", checkpoint.Epoch)
	return pipe, checkpoint, nil
}

func (wk *worker) markFailed(jobID string, err error) {
	end := time.Now()
	wk.jobs.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &end
	})
	wk.jobs.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateFailed, Timestamp: end})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// checkpointer saves the job's best genome at most once per interval.
type checkpointer struct {
	worker   *worker
	jobID    string
	config   store.JobConfig
	pipe     *pipeline.Pipeline
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (c *checkpointer) maybeSave() {
	if c.worker.store == nil || c.interval <= 0 {
		return
	}
	c.mu.Lock()
	due := time.Since(c.last) >= c.interval
	c.mu.Unlock()
	if !due {
		return
	}
	if err := c.save(); err != nil {
		slog.Error("Failed to save checkpoint", "job_id", c.jobID, "error", err)
	}
}

// save writes checkpoint.json plus best.png and diff.png.
func (c *checkpointer) save() error {
	st := c.worker.store
	if st == nil {
		return nil
	}
	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()

	job, ok := c.worker.jobs.GetJob(c.jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, c.jobID)
	}
	if len(job.Best) == 0 {
		slog.Debug("Skipping checkpoint, no best genome yet", "job_id", c.jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(c.jobID, job.Best, job.BestFitness, job.InitialFitness, job.Epoch, job.Evaluations, c.config)
	if err := st.SaveCheckpoint(c.jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	slog.Info("Checkpoint saved", "job_id", c.jobID, "epoch", job.Epoch, "best_fitness", job.BestFitness)

	if err := saveArtifacts(st.JobDir(c.jobID), c.pipe, job.Best); err != nil {
		slog.Warn("Failed to save checkpoint artifacts", "job_id", c.jobID, "error", err)
	}
	return nil
}

// saveArtifacts renders best.png and its diff image into dir.
func saveArtifacts(dir string, pipe *pipeline.Pipeline, best fit.Genome) error {
	img := pipe.Renderer().Decode(best)
	if err := imageio.Save(filepath.Join(dir, report.BestImage), img); err != nil {
		return err
	}
	return imageio.Save(filepath.Join(dir, DiffImage), pipe.Fitness().DiffImage(img))
}
