package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
	"github.com/secmon-lab/threatlens/pkg/domain/types"
)

// IntelHandler serves the aggregated threat data to the dashboard
type IntelHandler struct {
	intel interfaces.ThreatIntel
	feed  interfaces.Feed
}

// NewIntelHandler creates a new IntelHandler. feed may be nil, in which case
// /api/feed responds 404.
func NewIntelHandler(intel interfaces.ThreatIntel, feed interfaces.Feed) *IntelHandler {
	return &IntelHandler{
		intel: intel,
		feed:  feed,
	}
}

// HandleThreats handles GET /api/threats?q=&severity=
func (h *IntelHandler) HandleThreats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := model.ThreatFilter{
		Search: query.Get("q"),
	}

	if s := query.Get("severity"); s != "" && s != "all" {
		sev, err := types.ParseSeverity(s)
		if err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
		filter.Severity = sev
	}

	writeJSON(w, r, h.intel.FilterThreats(r.Context(), filter))
}

// HandleThreatSummary handles GET /api/threats/summary
func (h *IntelHandler) HandleThreatSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.intel.Summary(r.Context()))
}

// HandleRandomThreat handles GET /api/threats/random
func (h *IntelHandler) HandleRandomThreat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.intel.GenerateRandomThreat())
}

// HandleIncidents handles GET /api/incidents
func (h *IntelHandler) HandleIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.intel.GetIncidents(r.Context()))
}

// HandleRandomIncident handles GET /api/incidents/random
func (h *IntelHandler) HandleRandomIncident(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, h.intel.GenerateRandomIncident())
}

// HandleFeed handles GET /api/feed
func (h *IntelHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeError(w, goerr.New("live feed is not enabled"), http.StatusNotFound)
		return
	}

	threats, err := h.feed.List(r.Context())
	if err != nil {
		ctxlog.From(r.Context()).Error("Failed to list feed", "error", err)
		writeError(w, goerr.New("failed to list feed"), http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, threats)
}

// writeJSON writes v as a 200 JSON response. nil slices are written as [].
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	body := v
	switch list := v.(type) {
	case []*model.Threat:
		if list == nil {
			body = []*model.Threat{}
		}
	case []*model.Incident:
		if list == nil {
			body = []*model.Incident{}
		}
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}
