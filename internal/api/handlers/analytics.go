package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/analytics"
	"github.com/pennywise/pennywise/internal/api/middleware"
)

// AnalyticsHandler handles the analytics read endpoints.
type AnalyticsHandler struct {
	svc *analytics.Service
	log zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc *analytics.Service, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, log: log}
}

// parseQuery reads the shared window parameters. ok is false when a date
// failed to parse and the error response has already been written.
func (h *AnalyticsHandler) parseQuery(w http.ResponseWriter, r *http.Request) (analytics.Query, bool) {
	query := r.URL.Query()
	q := analytics.Query{
		Period:  query.Get("period"),
		Type:    query.Get("type"),
		GroupBy: query.Get("groupBy"),
	}

	if s := query.Get("startDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid startDate format")
			return q, false
		}
		q.StartDate = &t
	}
	if s := query.Get("endDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid endDate format")
			return q, false
		}
		q.EndDate = &t
	}
	return q, true
}

// Summary handles GET /analytics/summary
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	summary, err := h.svc.Summary(ctx, middleware.OwnerID(ctx), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Categories handles GET /analytics/categories
func (h *AnalyticsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	breakdown, err := h.svc.Categories(ctx, middleware.OwnerID(ctx), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute category breakdown")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute category breakdown")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": breakdown,
		"count":      len(breakdown),
	})
}

// Trends handles GET /analytics/trends
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	trends, err := h.svc.Trends(ctx, middleware.OwnerID(ctx), q)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute trends")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute trends")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"trends": trends,
		"count":  len(trends),
	})
}

// Insights handles GET /analytics/insights
func (h *AnalyticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	insights, err := h.svc.Insights(ctx, middleware.OwnerID(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute insights")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"insights": insights,
		"count":    len(insights),
	})
}

// Patterns handles GET /analytics/patterns
func (h *AnalyticsHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.svc.Patterns(ctx, middleware.OwnerID(ctx))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute patterns")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute patterns")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
