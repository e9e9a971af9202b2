package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/collision-dashboard/internal/adapter/chart"
	"github.com/couchcryptid/collision-dashboard/internal/dashboard"
	"github.com/couchcryptid/collision-dashboard/internal/dataset"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dashboard answers the view queries behind the API.
type Dashboard interface {
	sharedobs.ReadinessChecker
	Summary() (dashboard.Summary, error)
	InjuryMap(minInjured int) (dashboard.InjuryMap, error)
	HourView(ctx context.Context, hour int) (dashboard.HourView, error)
	Histogram(hour int) (dashboard.Histogram, error)
	HourCollisions(hour int) (dashboard.HourCollisions, error)
	TopStreets(ctx context.Context, category string) (dashboard.TopStreets, error)
}

// Server exposes the dashboard API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	dashboard  Dashboard
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api/v1 routes plus /healthz, /readyz, and /metrics.
func NewServer(addr string, d Dashboard, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dashboard: d,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(d))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/injuries", s.handleInjuries)
	mux.HandleFunc("GET /api/v1/hours/{hour}", s.handleHourView)
	mux.HandleFunc("GET /api/v1/hours/{hour}/histogram", s.handleHistogram)
	mux.HandleFunc("GET /api/v1/hours/{hour}/histogram.png", s.handleHistogramPNG)
	mux.HandleFunc("GET /api/v1/hours/{hour}/collisions", s.handleHourCollisions)
	mux.HandleFunc("GET /api/v1/streets/top", s.handleTopStreets)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.dashboard.Summary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

func (s *Server) handleInjuries(w http.ResponseWriter, r *http.Request) {
	minInjured := 0
	if v := r.URL.Query().Get("min"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: %q is not an integer", dashboard.ErrInvalidThreshold, v))
			return
		}
		minInjured = n
	}

	m, err := s.dashboard.InjuryMap(minInjured)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) handleHourView(w http.ResponseWriter, r *http.Request) {
	hour, err := hourParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	v, err := s.dashboard.HourView(r.Context(), hour)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	hour, err := hourParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	h, err := s.dashboard.Histogram(hour)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleHistogramPNG(w http.ResponseWriter, r *http.Request) {
	hour, err := hourParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	h, err := s.dashboard.Histogram(hour)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Render fully before writing so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := chart.RenderHistogram(&buf, h); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHourCollisions(w http.ResponseWriter, r *http.Request) {
	hour, err := hourParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	c, err := s.dashboard.HourCollisions(hour)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) handleTopStreets(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = "pedestrians"
	}

	top, err := s.dashboard.TopStreets(r.Context(), category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, top)
}

func hourParam(r *http.Request) (int, error) {
	v := r.PathValue("hour")
	hour, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", dashboard.ErrInvalidHour, v)
	}
	return hour, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dashboard.ErrInvalidThreshold),
		errors.Is(err, dashboard.ErrInvalidHour),
		errors.Is(err, dashboard.ErrUnknownCategory):
		status = http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error("request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
