// Package httpapi exposes scan scoring over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-geoscore/infrastructure/source"
	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/ports"
)

// maxBodyBytes bounds the size of a scan submission.
const maxBodyBytes = 8 << 20

// Server scores scans submitted as JSON. Each request gets its own
// in-memory source and scorer; the configuration is shared.
type Server struct {
	cfg        application.ScoringConfig
	metrics    ports.MetricsCollector
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	scorerOpts []application.ScorerOption
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics sets the collector passed to the source middleware and the
// scorer.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics. Defaults to the
// Prometheus default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithScorerOptions appends options applied to every scorer the server
// builds.
func WithScorerOptions(opts ...application.ScorerOption) Option {
	return func(s *Server) { s.scorerOpts = append(s.scorerOpts, opts...) }
}

// New creates a Server.
func New(cfg application.ScoringConfig, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router.
//
//	POST /v1/scans/score  score a scan submitted as JSON
//	GET  /healthz         liveness
//	GET  /metrics         Prometheus exposition
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(rt chi.Router) {
		rt.Post("/scans/score", s.wrap(s.handleScore))
	})

	return r
}

// statusError carries the HTTP status for a handler error.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		code := http.StatusInternalServerError
		var se *statusError
		switch {
		case errors.As(err, &se):
			code = se.code
		case errors.Is(err, ports.ErrSourceUnavailable):
			code = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			code = http.StatusGatewayTimeout
		}

		s.logger.Error("request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"request_id", middleware.GetReqID(req.Context()),
			"status", code,
			"error", err,
		)
		writeJSON(w, code, map[string]string{"error": err.Error()})
	}
}

// POST /v1/scans/score
// Body: a scan input document in JSON. Responds with the scan report.
func (s *Server) handleScore(w http.ResponseWriter, req *http.Request) error {
	in, err := source.DecodeScanInput(http.MaxBytesReader(w, req.Body, maxBodyBytes), source.FormatJSON)
	if err != nil {
		return &statusError{code: http.StatusBadRequest, err: err}
	}

	src := source.Wrap(source.NewMemorySource(in), s.cfg, s.metrics)

	opts := []application.ScorerOption{application.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, application.WithMetrics(s.metrics))
	}
	opts = append(opts, s.scorerOpts...)

	scorer, err := application.NewScanScorer(src, s.cfg, opts...)
	if err != nil {
		return err
	}

	report, err := scorer.Score(req.Context(), in.Request())
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, report)
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
