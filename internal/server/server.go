package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/evopolyfit/internal/report"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	worker     *worker
	registry   *prometheus.Registry
	addr       string
	server     *http.Server
}

// NewServer creates a server. st and history may be nil; without a store
// jobs run without checkpoints and resume is rejected.
func NewServer(addr string, st *store.FSStore, history store.History) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := report.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	jm := NewJobManager()
	return &Server{
		jobManager: jm,
		worker: &worker{
			jobs:    jm,
			store:   st,
			history: history,
			metrics: metrics,
		},
		registry: registry,
		addr:     addr,
	}, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/jobs", s.handleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJobStatus)
	mux.HandleFunc("GET /api/v1/jobs/{id}/status", s.handleGetJobStatus)
	mux.HandleFunc("GET /api/v1/jobs/{id}/best.png", s.handleGetBestImage)
	mux.HandleFunc("GET /api/v1/jobs/{id}/diff.png", s.handleGetDiffImage)
	mux.HandleFunc("GET /api/v1/jobs/{id}/stream", s.handleJobStream)
	mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.handleCancelJob)

	mux.HandleFunc("GET /api/v1/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("DELETE /api/v1/checkpoints/{id}", s.handleDeleteCheckpoint)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels running jobs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.jobManager.CancelAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// StartJob creates a job for req and runs it in the background.
func (s *Server) StartJob(req JobRequest) (Job, error) {
	if err := req.Validate(); err != nil {
		return Job{}, err
	}
	job := s.jobManager.CreateJob(req)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.attach(job.ID, &runtime{cancel: cancel})
	go func() {
		defer cancel()
		s.worker.runJob(ctx, job.ID)
	}()
	return job, nil
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	req := NewJobRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	job, err := s.StartJob(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// JobStatus is the response of GET /api/v1/jobs/{id}/status.
type JobStatus struct {
	Job
	ElapsedSeconds       float64 `json:"elapsed"`
	EvaluationsPerSecond float64 `json:"evaluationsPerSecond"`
}

// handleGetJobStatus handles GET /api/v1/jobs/{id}/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	job, exists := s.jobManager.GetJob(r.PathValue("id"))
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	status := JobStatus{Job: job, ElapsedSeconds: job.Elapsed().Seconds()}
	if status.ElapsedSeconds > 0 {
		spent := max(job.Evaluations-job.resumedEvaluations, 0)
		status.EvaluationsPerSecond = float64(spent) / status.ElapsedSeconds
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetBestImage handles GET /api/v1/jobs/{id}/best.png
func (s *Server) handleGetBestImage(w http.ResponseWriter, r *http.Request) {
	s.serveJobImage(w, r, func(best *image.RGBA, diff func(*image.RGBA) *image.NRGBA) image.Image {
		return best
	})
}

// handleGetDiffImage handles GET /api/v1/jobs/{id}/diff.png
func (s *Server) handleGetDiffImage(w http.ResponseWriter, r *http.Request) {
	s.serveJobImage(w, r, func(best *image.RGBA, diff func(*image.RGBA) *image.NRGBA) image.Image {
		return diff(best)
	})
}

// serveJobImage renders the job's current best genome with its own pipeline
// and writes the image chosen by pick as PNG.
func (s *Server) serveJobImage(w http.ResponseWriter, r *http.Request, pick func(*image.RGBA, func(*image.RGBA) *image.NRGBA) image.Image) {
	jobID := r.PathValue("id")
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	pipe, ok := s.jobManager.pipelineFor(jobID)
	if !ok || len(job.Best) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	best := pipe.Renderer().Decode(job.Best)
	img := pick(best, pipe.Fitness().DiffImage)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to encode PNG", "job_id", jobID, "error", err)
	}
}

// handleCancelJob handles POST /api/v1/jobs/{id}/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.jobManager.Cancel(r.PathValue("id"))
	switch {
	case errors.Is(err, ErrJobNotFound):
		http.Error(w, "Job not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// handleListCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if s.worker.store == nil {
		writeJSON(w, http.StatusOK, []store.CheckpointInfo{})
		return
	}
	infos, err := s.worker.store.ListCheckpoints()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleDeleteCheckpoint handles DELETE /api/v1/checkpoints/{id}
func (s *Server) handleDeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.worker.store == nil {
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
		return
	}
	err := s.worker.store.DeleteCheckpoint(r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
