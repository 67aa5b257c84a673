package server

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/evopolyfit/internal/store"
)

func createTestImage(t *testing.T, path string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 20), B: 90, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create image file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode image: %v", err)
	}
}

func newTestWorker(t *testing.T, withStore bool) (*worker, *store.FSStore) {
	t.Helper()

	var st *store.FSStore
	if withStore {
		var err error
		if st, err = store.NewFSStore(t.TempDir()); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
	}
	return &worker{jobs: NewJobManager(), store: st}, st
}

func TestRunJob_Success(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "test.png")
	createTestImage(t, imgPath)

	wk, st := newTestWorker(t, true)
	job := wk.jobs.CreateJob(testRequest(imgPath))

	if err := wk.runJob(context.Background(), job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := wk.jobs.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
	if len(updated.Best) != 4 {
		t.Errorf("Expected 4 polygons, got %d", len(updated.Best))
	}
	if updated.BestFitness > 0 || updated.BestFitness < updated.InitialFitness {
		t.Errorf("Best fitness %f should lie in [initial %f, 0]", updated.BestFitness, updated.InitialFitness)
	}
	if updated.Epoch != 2 {
		t.Errorf("Expected last epoch 2, got %d", updated.Epoch)
	}
	if updated.Evaluations == 0 {
		t.Error("Evaluations should be counted")
	}

	cp, err := st.LoadCheckpoint(job.ID)
	if err != nil {
		t.Fatalf("Final checkpoint missing: %v", err)
	}
	if !cp.Best.Equal(updated.Best) {
		t.Error("Checkpoint should hold the final best genome")
	}
	for _, name := range []string{"best.png", DiffImage, store.TraceFile} {
		if _, err := os.Stat(filepath.Join(st.JobDir(job.ID), name)); err != nil {
			t.Errorf("Missing artifact %s: %v", name, err)
		}
	}
}

func TestRunJob_WithoutStore(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "test.png")
	createTestImage(t, imgPath)

	wk, _ := newTestWorker(t, false)
	job := wk.jobs.CreateJob(testRequest(imgPath))

	if err := wk.runJob(context.Background(), job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}
	if updated, _ := wk.jobs.GetJob(job.ID); updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
}

func TestRunJob_InvalidImage(t *testing.T) {
	wk, _ := newTestWorker(t, false)
	job := wk.jobs.CreateJob(testRequest("/nonexistent/image.png"))

	if err := wk.runJob(context.Background(), job.ID); err == nil {
		t.Error("runJob should fail with invalid image path")
	}

	updated, _ := wk.jobs.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_NotFound(t *testing.T) {
	wk, _ := newTestWorker(t, false)
	if err := wk.runJob(context.Background(), "nonexistent"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestRunJob_Cancelled(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "test.png")
	createTestImage(t, imgPath)

	wk, _ := newTestWorker(t, false)
	req := testRequest(imgPath)
	req.Options.Epochs = 0 // run until cancelled
	job := wk.jobs.CreateJob(req)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := wk.runJob(ctx, job.ID); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	updated, _ := wk.jobs.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
	if len(updated.Best) == 0 {
		t.Error("Cancelled job should still report the best of generation 0")
	}
}

func TestRunJob_Resume(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "test.png")
	createTestImage(t, imgPath)

	wk, st := newTestWorker(t, true)
	first := wk.jobs.CreateJob(testRequest(imgPath))
	if err := wk.runJob(context.Background(), first.ID); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	done, _ := wk.jobs.GetJob(first.ID)

	req := testRequest(imgPath)
	req.ResumeFrom = first.ID
	second := wk.jobs.CreateJob(req)
	if err := wk.runJob(context.Background(), second.ID); err != nil {
		t.Fatalf("Resumed run failed: %v", err)
	}

	resumed, _ := wk.jobs.GetJob(second.ID)
	if resumed.BestFitness < done.BestFitness {
		t.Errorf("Resumed best %f is worse than checkpoint %f", resumed.BestFitness, done.BestFitness)
	}
	if resumed.InitialFitness != done.InitialFitness {
		t.Errorf("InitialFitness = %f, want the source job's %f", resumed.InitialFitness, done.InitialFitness)
	}
	// Epochs 0..2 ran before, so the resumed job records 3..5.
	if resumed.Epoch != 5 {
		t.Errorf("Expected last epoch 5, got %d", resumed.Epoch)
	}
	if resumed.Evaluations <= done.Evaluations {
		t.Errorf("Evaluations should continue from %d, got %d", done.Evaluations, resumed.Evaluations)
	}

	cp, err := st.LoadCheckpoint(second.ID)
	if err != nil {
		t.Fatalf("Resumed checkpoint missing: %v", err)
	}
	if cp.Epoch != resumed.Epoch || cp.Evaluations != resumed.Evaluations {
		t.Errorf("Checkpoint epoch %d, evaluations %d; job has %d, %d", cp.Epoch, cp.Evaluations, resumed.Epoch, resumed.Evaluations)
	}

	r, err := store.NewTraceReader(st.JobDir(second.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Epoch != 3 || entries[0].Evaluations <= done.Evaluations {
		t.Errorf("Trace should continue at epoch 3, got %+v", entries)
	}
}

func TestRunJob_ResumeIncompatible(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "test.png")
	createTestImage(t, imgPath)

	wk, _ := newTestWorker(t, true)
	first := wk.jobs.CreateJob(testRequest(imgPath))
	if err := wk.runJob(context.Background(), first.ID); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	req := testRequest(imgPath)
	req.ResumeFrom = first.ID
	req.Options.Polygons = 7
	second := wk.jobs.CreateJob(req)

	err := wk.runJob(context.Background(), second.ID)
	var ce *store.CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected CompatibilityError, got %v", err)
	}
	if updated, _ := wk.jobs.GetJob(second.ID); updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
}
