package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/logregbench/internal/config"
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/store"
)

const maxBodyBytes = 1 << 20

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	addr       string
	server     *http.Server
}

// NewServer creates a server. When st is non-nil, finished runs and their
// traces are persisted and stored runs can be fetched by ID.
func NewServer(addr string, st *store.FSStore) *Server {
	return &Server{
		jobManager: NewJobManager(),
		store:      st,
		addr:       addr,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/trace", s.handleGetTrace)
	mux.HandleFunc("GET /api/v1/runs/{id}/stream", s.handleRunStream)
	mux.HandleFunc("GET /api/v1/devices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, device.Inventory())
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels unfinished runs and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.jobManager.CancelAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleCreateRun handles POST /api/v1/runs. The body is a benchmark
// definition in YAML or JSON; omitted fields take their defaults.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}

	bench, err := config.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(*bench)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.cancel = cancel })

	go func() {
		defer cancel()
		if err := runJob(ctx, s.jobManager, s.store, job.ID); err != nil {
			slog.Debug("Job ended with error", "job_id", job.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetRun handles GET /api/v1/runs/{id}. Jobs known to this process
// are returned live; otherwise the stored run record is returned.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if job, ok := s.jobManager.GetJob(id); ok {
		writeJSON(w, http.StatusOK, job)
		return
	}

	if s.store == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	record, err := s.store.LoadRun(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleCancelRun handles DELETE /api/v1/runs/{id}
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.jobManager.GetJob(id); !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.Cancel(id) {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleGetTrace handles GET /api/v1/runs/{id}/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "No store configured", http.StatusNotFound)
		return
	}

	tr, err := store.NewTraceReader(s.store.BaseDir(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if solver := r.URL.Query().Get("solver"); solver != "" {
		entries = store.GroupBySolver(entries)[solver]
	}
	if entries == nil {
		entries = []store.TraceEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
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
