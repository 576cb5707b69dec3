package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/hooklens/internal/domain/types"
)

// RunsHandler serves the last run of a single taxonomy.
type RunsHandler struct {
	runs RunReporter
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunReporter) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// HandleGetRun handles GET /runs/{taxonomy} requests.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/runs/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	kind, ok := types.ParseKind(name)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_taxonomy", fmt.Errorf("%w: %q", ErrUnknownTaxonomy, name))
		return
	}
	sum, ok := h.runs.LastRun(kind)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", ErrNoRun, kind))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
