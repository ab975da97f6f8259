package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cybrsens.io/internal/metrics"
)

type recordMetricRequest struct {
	Type     string         `json:"metric_type"`
	Value    float64        `json:"value"`
	Severity string         `json:"severity"`
	Metadata map[string]any `json:"metadata"`
}

func (a *API) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary := a.metrics.Summarize(r.Context(), chi.URLParam(r, "orgID"), r.URL.Query().Get("range"))
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleRecordMetric(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	var req recordMetricRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sample, err := a.metrics.Record(r.Context(), chi.URLParam(r, "orgID"), metrics.Type(req.Type), req.Value, metrics.Severity(req.Severity), actor, req.Metadata)
	if err != nil {
		handleMetricsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sample)
}

func (a *API) handleListThreats(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	threats := a.metrics.ActiveThreats(r.Context(), chi.URLParam(r, "orgID"), limit)
	writeJSON(w, http.StatusOK, map[string]any{"threats": threats})
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	incidents := a.metrics.RecentIncidents(r.Context(), chi.URLParam(r, "orgID"), limit)
	writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := identityOrFail(w, r)
	if !ok {
		return
	}
	snapshot := a.metrics.Export(r.Context(), chi.URLParam(r, "orgID"), r.URL.Query().Get("range"), actor)
	writeJSON(w, http.StatusOK, snapshot)
}

func handleMetricsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, metrics.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, metrics.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, metrics.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
