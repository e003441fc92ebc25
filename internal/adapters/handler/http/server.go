package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	redisq "vmdesk.app/internal/adapters/queue/redis"
	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/planner"
	"vmdesk.app/internal/core/services"
)

// DeadLetters lists runs that exhausted their retries.
type DeadLetters interface {
	List(ctx context.Context, offset, limit int64) ([]*redisq.DLQEntry, error)
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	router    *chi.Mux
	runs      *services.RunService
	healthSvc *services.HealthService
	hub       *Hub
	dlq       DeadLetters
	metrics   bool
	srv       *http.Server
}

type Option func(*Server)

// WithMetrics toggles request metrics and the /metrics endpoint. On by default.
func WithMetrics(enabled bool) Option {
	return func(s *Server) { s.metrics = enabled }
}

func NewServer(runs *services.RunService, healthSvc *services.HealthService, hub *Hub, dlq DeadLetters, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		runs:      runs,
		healthSvc: healthSvc,
		hub:       hub,
		dlq:       dlq,
		metrics:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.metrics {
		s.router.Use(MetricsMiddleware)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.metrics {
		s.router.Handle("/metrics", MetricsHandler())
	}

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/health/detailed", s.handleDetailedHealth)
	s.router.Get("/api/ws", s.handleWS)

	s.router.Get("/api/workflows", s.handleListWorkflows)
	s.router.Post("/api/plan", s.handlePreviewPlan)

	s.router.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleCreateRun)
		r.Get("/", s.handleListRuns)
		r.Get("/{id}", s.handleGetRun)
		r.Post("/{id}/cancel", s.handleCancelRun)
		r.Post("/{id}/retry", s.handleRetryRun)
	})

	s.router.Get("/api/dlq", s.handleListDLQ)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// requestLogger logs each request through the structured logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.InfoContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, code, body)
}

// statusFor maps service errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrUnknownWorkflow),
		errors.Is(err, planner.ErrUnknownKind),
		errors.Is(err, planner.ErrEmptyPrompt),
		errors.Is(err, planner.ErrPromptTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, w, r)
}

type workflowsResponse struct {
	Workflows []planner.Info `json:"workflows"`
	TaskKinds []string       `json:"task_kinds"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, workflowsResponse{
		Workflows: planner.Workflows(),
		TaskKinds: planner.TaskKinds(),
	})
}

// decodeRunRequest reads the body of POST /api/plan and POST /api/runs.
func decodeRunRequest(w http.ResponseWriter, r *http.Request) (domain.Request, bool) {
	var req domain.Request
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return req, false
	}
	if req.Workflow == "" {
		writeError(w, http.StatusBadRequest, "Validation failed", errors.New("workflow is required"))
		return req, false
	}
	return req, true
}

func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	plan, err := s.runs.PreviewPlan(req)
	if err != nil {
		writeError(w, statusFor(err), "Invalid plan request", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRunRequest(w, r)
	if !ok {
		return
	}
	run, err := s.runs.CreateRun(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), "Failed to create run", err)
		return
	}

	s.hub.Broadcast(Message{Type: "run_created", Payload: run})
	writeJSON(w, http.StatusCreated, run)
}

// pagination reads offset and limit, defaulting limit to 20.
func pagination(r *http.Request) (int, int) {
	offset, limit := 0, 20
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}
	return offset, limit
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	result, err := s.runs.ListRuns(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.runs.CancelRun(r.Context(), id); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusConflict
		}
		writeError(w, code, "Failed to cancel run", err)
		return
	}

	s.hub.Broadcast(Message{Type: "run_cancelled", Payload: map[string]string{"run_id": id}})
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "run_id": id})
}

func (s *Server) handleRetryRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.RetryRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusConflict
		}
		writeError(w, code, "Failed to retry run", err)
		return
	}

	s.hub.Broadcast(Message{Type: "run_retried", Payload: run})
	writeJSON(w, http.StatusOK, run)
}

type dlqResponse struct {
	Entries []*redisq.DLQEntry `json:"entries"`
	Total   int64              `json:"total"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
}

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	if s.dlq == nil {
		writeError(w, http.StatusServiceUnavailable, "Dead letter queue not configured", nil)
		return
	}
	offset, limit := pagination(r)
	entries, err := s.dlq.List(r.Context(), int64(offset), int64(limit))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list dead letters", err)
		return
	}
	total, err := s.dlq.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count dead letters", err)
		return
	}
	writeJSON(w, http.StatusOK, dlqResponse{Entries: entries, Total: total, Offset: offset, Limit: limit})
}
