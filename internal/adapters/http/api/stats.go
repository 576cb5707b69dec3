package api

import (
	"net/http"

	service "github.com/okian/hooklens/internal/app"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	runs RunReporter
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(runs RunReporter) *StatsHandler {
	return &StatsHandler{runs: runs}
}

type statsResponse struct {
	Runs []service.Summary `json:"runs"`
}

// HandleStats handles GET /stats requests: the last run of every taxonomy
// classified since the process started.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	runs := h.runs.Runs()
	if runs == nil {
		runs = []service.Summary{}
	}
	writeJSON(w, http.StatusOK, statsResponse{Runs: runs})
}
