package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/weather-observation-etl/internal/analysis"
	"github.com/couchcryptid/weather-observation-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker = sharedobs.ReadinessChecker

// ReportSource returns the analysis of the most recent batch, if any.
type ReportSource interface {
	LatestReport() (analysis.Report, bool)
}

// Server exposes health, readiness, metrics, and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /report
// and /report/cities/{city} routes. reports may be nil when no batch runs in
// this process.
func NewServer(addr string, ready ReadinessChecker, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	reportsH := reportHandler{source: reports}
	mux.HandleFunc("GET /report", reportsH.handleReport)
	mux.HandleFunc("GET /report/cities/{city}", reportsH.handleCity)

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

// reportHandler serves the latest batch report. source may be nil.
type reportHandler struct {
	source ReportSource
}

// cityReport is the slice of the latest report concerning one city.
type cityReport struct {
	City        string              `json:"city"`
	GeneratedAt time.Time           `json:"generated_at"`
	Units       domain.Units        `json:"units"`
	Stats       *analysis.CityStats `json:"stats,omitempty"`
	Daytime     *analysis.CityStats `json:"daytime,omitempty"`
	Omitted     *analysis.Omission  `json:"omitted,omitempty"`
}

func (h reportHandler) latest(w http.ResponseWriter) (analysis.Report, bool) {
	if h.source == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "reports are not produced in this mode"})
		return analysis.Report{}, false
	}
	report, ok := h.source.LatestReport()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no batch has completed yet"})
		return analysis.Report{}, false
	}
	return report, true
}

func (h reportHandler) handleReport(w http.ResponseWriter, _ *http.Request) {
	if report, ok := h.latest(w); ok {
		sharedobs.WriteJSON(w, http.StatusOK, report)
	}
}

// handleCity returns one city's figures from the latest report. A city that
// was requested but omitted from the batch is reported with its reason.
func (h reportHandler) handleCity(w http.ResponseWriter, r *http.Request) {
	report, ok := h.latest(w)
	if !ok {
		return
	}
	city := r.PathValue("city")

	out := cityReport{City: city, GeneratedAt: report.GeneratedAt, Units: report.Units}
	out.Stats = findCity(report.ByCity, city)
	out.Daytime = findCity(report.Daytime.ByCity, city)
	for i := range report.Omitted {
		if strings.EqualFold(report.Omitted[i].City, city) {
			out.Omitted = &report.Omitted[i]
			break
		}
	}

	if out.Stats == nil && out.Omitted == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("city %q is not in the latest batch", city)})
		return
	}
	if out.Stats != nil {
		out.City = out.Stats.City
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

func findCity(stats []analysis.CityStats, city string) *analysis.CityStats {
	for i := range stats {
		if strings.EqualFold(stats[i].City, city) {
			return &stats[i]
		}
	}
	return nil
}
