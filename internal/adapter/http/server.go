package http

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundwatch/noise-monitor-service/internal/domain"
)

const (
	defaultLatestLimit   = 20
	maxLatestLimit       = 500
	defaultSummaryWindow = time.Hour
	storeQueryTimeout    = 5 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"labelOf": labelOf,
	"clock":   func(r domain.Reading) string { return r.Time().Format("2006-01-02 15:04:05") },
}).ParseFS(templateFS, "templates/dashboard.html"))

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessChecks is ready only when every check passes.
type ReadinessChecks []ReadinessChecker

func (rc ReadinessChecks) CheckReadiness(ctx context.Context) error {
	for _, c := range rc {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ReadingStore serves the dashboard queries.
type ReadingStore interface {
	Latest(ctx context.Context, limit int) ([]domain.Reading, error)
	Summary(ctx context.Context, since time.Time) (domain.Summary, error)
}

// Classifier labels ad-hoc levels with the service's configured mode.
type Classifier interface {
	Classify(ctx context.Context, level float64) domain.Label
	Mode() domain.Mode
}

// Server exposes health, readiness, metrics, the readings API and the dashboard.
type Server struct {
	httpServer *http.Server
	store      ReadingStore
	classifier Classifier
	logger     *slog.Logger
}

// NewServer creates an HTTP server with operational routes under / and the
// readings API under /api.
func NewServer(addr string, ready ReadinessChecker, store ReadingStore, classifier Classifier, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:      store,
		classifier: classifier,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/health", handleAPIHealth)
	mux.HandleFunc("GET /api/current", s.handleCurrent)
	mux.HandleFunc("GET /api/readings/latest", s.handleLatest)
	mux.HandleFunc("GET /api/readings/summary", s.handleSummary)
	mux.HandleFunc("GET /api/classify", s.handleClassify)
	mux.HandleFunc("GET /{$}", s.handleDashboard)

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

func handleAPIHealth(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	readings, err := s.store.Latest(ctx, 1)
	if err != nil {
		s.storeError(w, "load current reading", err)
		return
	}
	if len(readings) == 0 {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "no data yet"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, readings[0])
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit := defaultLatestLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLatestLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	readings, err := s.store.Latest(ctx, limit)
	if err != nil {
		s.storeError(w, "load latest readings", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	window := defaultSummaryWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration such as 15m")
			return
		}
		window = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	sum, err := s.store.Summary(ctx, time.Now().Add(-window))
	if err != nil {
		s.storeError(w, "load summary", err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.ParseFloat(r.URL.Query().Get("level"), 64)
	if err != nil || math.IsNaN(level) || math.IsInf(level, 0) {
		writeError(w, http.StatusBadRequest, "level must be a finite number")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"level_db": level,
		"mode":     s.classifier.Mode(),
		"label":    s.classifier.Classify(ctx, level),
	})
}

type dashboardData struct {
	Mode     domain.Mode
	Summary  domain.Summary
	Readings []domain.Reading
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeQueryTimeout)
	defer cancel()

	readings, err := s.store.Latest(ctx, defaultLatestLimit)
	if err != nil {
		s.storeError(w, "load dashboard readings", err)
		return
	}
	sum, err := s.store.Summary(ctx, time.Now().Add(-defaultSummaryWindow))
	if err != nil {
		s.storeError(w, "load dashboard summary", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := dashboardData{Mode: s.classifier.Mode(), Summary: sum, Readings: readings}
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.logger.Error("render dashboard failed", "error", err)
	}
}

func (s *Server) storeError(w http.ResponseWriter, action string, err error) {
	s.logger.Error(action+" failed", "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, action+" failed")
}

// labelOf renders a possibly missing label.
func labelOf(l *domain.Label) string {
	if l == nil {
		return "pending"
	}
	return string(*l)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
