package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"timetrack/internal/log"
	"timetrack/internal/metrics"
	"timetrack/internal/middleware/ratelimit"
	"timetrack/internal/middleware/security"
	"timetrack/internal/middleware/trace"
	"timetrack/internal/services"
)

// Options configures the middleware around the API. Zero values pick
// defaults; a nil Metrics disables /metrics and request observation.
type Options struct {
	Logger         *log.Logger
	Metrics        *metrics.Metrics
	RateLimit      ratelimit.Config
	Headers        *security.HeadersConfig
	TrustedProxies []string
	ReadyTimeout   time.Duration
}

type Server struct {
	http.Server
	svc          *services.Services
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	logger       *log.Logger
	readyTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	if opts.RateLimit.RequestsPerMinute <= 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.WarnContext(context.Background(), "Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}

	mux := http.NewServeMux()
	s := &Server{
		svc:          svc,
		limiter:      ratelimit.NewLimiter(opts.RateLimit),
		detector:     detector,
		logger:       logger,
		readyTimeout: opts.ReadyTimeout,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /api/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	mux.HandleFunc("GET /api/time-entries", s.handleListTimeEntries)
	mux.HandleFunc("POST /api/time-entries", s.handleCreateTimeEntry)
	mux.HandleFunc("GET /api/time-entries/active", s.handleActiveTimeEntry)
	mux.HandleFunc("GET /api/time-entries/{id}", s.handleGetTimeEntry)
	mux.HandleFunc("PATCH /api/time-entries/{id}", s.handleUpdateTimeEntry)
	mux.HandleFunc("DELETE /api/time-entries/{id}", s.handleDeleteTimeEntry)
	mux.HandleFunc("POST /api/time-entries/{id}/stop", s.handleStopTimeEntry)

	mux.HandleFunc("GET /api/task-names", s.handleListTaskNames)
	mux.HandleFunc("POST /api/task-names", s.handleCreateTaskName)
	mux.HandleFunc("GET /api/task-names/{id}", s.handleGetTaskName)
	mux.HandleFunc("PATCH /api/task-names/{id}", s.handleUpdateTaskName)
	mux.HandleFunc("DELETE /api/task-names/{id}", s.handleDeleteTaskName)

	mux.HandleFunc("GET /api/reports", s.handleReport)
	mux.HandleFunc("GET /api/reports/export", s.handleExportReport)

	var observer trace.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	tracer := trace.NewMiddleware(detector.ExtractClientIP, logger, observer).
		WithRouteResolver(func(r *http.Request) string {
			_, pattern := mux.Handler(r)
			return pattern
		})

	// Outermost first
	chain := []func(http.Handler) http.Handler{
		tracer.Middleware,
		log.Middleware(logger),
		log.RequestIDMiddleware(trace.RequestIDFromRequest),
		security.NewHeadersMiddleware(headers).Middleware,
		detector.Middleware,
		s.limiter.Middleware(detector.ExtractClientIP, writeRateLimited),
	}
	var handler http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
			s.logger.WithComponent(log.ComponentRateLimit).InfoContext(ctx, "Rate limiter stopped",
				"rejected", s.limiter.Rejected())
		}
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.InfoContext(ctx, "HTTP server stopped",
			log.FieldOperation, log.OpShutdown,
			"suspicious", s.detector.Suspicious())
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only while the store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
