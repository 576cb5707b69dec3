// Package api serves the read-only ops endpoints of a classification process:
// liveness, Prometheus metrics, and the summaries of finished runs.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/hooklens/internal/adapters/http/swagger"
	service "github.com/okian/hooklens/internal/app"
	"github.com/okian/hooklens/internal/domain/types"
)

// RunReporter exposes finished run summaries. *service.Service satisfies it.
type RunReporter interface {
	Runs() []service.Summary
	LastRun(kind types.Kind) (service.Summary, bool)
}

// Server wires HTTP routes for the ops API.
type Server struct {
	healthHandler  *HealthHandler
	metricsHandler http.Handler
	statsHandler   *StatsHandler
	runsHandler    *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(runs RunReporter) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		metricsHandler: NewMetricsHandler(),
		statsHandler:   NewStatsHandler(runs),
		runsHandler:    NewRunsHandler(runs),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.metricsHandler)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/runs/", MetricsMiddleware(s.runsHandler.HandleGetRun, "runs"))
	swagger.Register(ctx, mux)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return mux
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
