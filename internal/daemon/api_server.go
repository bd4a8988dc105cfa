package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"stemworker/internal/api"
	"stemworker/internal/config"
	"stemworker/internal/logging"
	"stemworker/internal/services"
	"stemworker/internal/tracker"
	"stemworker/internal/workflow"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{bind: bind, logger: logger, daemon: d}
	srv.server = &http.Server{
		Handler:           srv.routes(strings.TrimSpace(cfg.Paths.APIToken)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/scan", s.handleScan)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req api.CreateJobRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	job, err := s.daemon.Create(r.Context(), CreateRequest{
		SourceLocation:      req.SourceLocation,
		DestinationLocation: req.DestinationLocation,
		CallbackURL:         req.CallbackURL,
	})
	if err != nil {
		var rejection *Rejection
		switch {
		case errors.As(err, &rejection):
			scan := rejection.Scan
			s.writeJSON(w, http.StatusBadRequest, api.RejectionResponse{Error: rejection.Error(), Scan: &scan})
		case errors.Is(err, services.ErrValidation):
			s.writeError(w, http.StatusBadRequest, services.MessageOf(err))
		case errors.Is(err, services.ErrTransfer):
			s.writeError(w, http.StatusServiceUnavailable, services.MessageOf(err))
		default:
			s.log().Error("job admission failed", logging.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, api.CreateJobResponse{
		ExecutionID:         job.ExecutionID,
		Status:              string(job.Status),
		FolderName:          job.FolderName,
		SourceLocation:      job.SourceLocation,
		DestinationLocation: job.DestinationLocation,
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	statuses, err := api.ParseStatuses(r.URL.Query()["status"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.daemon.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source_location"))
	if source == "" {
		s.writeError(w, http.StatusBadRequest, "source_location is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Scan(r.Context(), source))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := s.daemon.Health(r.Context())
	code := http.StatusOK
	if !workflow.Healthy(checks) {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, api.FromHealth(checks))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	counts := make(map[string]int, len(status.Counts))
	for k, v := range status.Counts {
		counts[string(k)] = v
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		TrackerPath:  status.TrackerPath,
		QueueBackend: status.QueueBackend,
		Counts:       counts,
		Workflow:     api.FromStatusSummary(status.Workflow),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
