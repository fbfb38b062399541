package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
)

// PartnerProxy forwards a GET to the partner API through the cache and
// call budget. The wildcard remainder of the URL is the upstream path.
func (h *Handler) PartnerProxy(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing partner path")
		return
	}
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	body, cached, err := h.partner.Fetch(r.Context(), path)
	if err != nil {
		if _, ok := app.IsBudgetExhausted(err); ok {
			h.metrics.PartnerThrottled.Inc()
		} else {
			h.metrics.PartnerCalls.WithLabelValues("error").Inc()
		}
		writeServiceError(w, err)
		return
	}

	h.metrics.PartnerCalls.WithLabelValues("ok").Inc()
	if cached {
		h.metrics.PartnerCacheHits.WithLabelValues("hit").Inc()
	} else {
		h.metrics.PartnerCacheHits.WithLabelValues("miss").Inc()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// PartnerCacheStats reports partner cache usage counters.
func (h *Handler) PartnerCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.partner.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.metrics.PartnerCacheSize.Set(float64(stats.Entries))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":   stats.Entries,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"throttled": stats.Throttled,
	})
}

// PartnerCacheClear drops every cached partner response.
func (h *Handler) PartnerCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := h.partner.ClearCache(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	h.metrics.PartnerCacheSize.Set(0)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// DeliveryResponse is the wire shape of a CRM webhook delivery record.
type DeliveryResponse struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	EventType    string  `json:"event_type"`
	Status       string  `json:"status"`
	Attempt      int     `json:"attempt"`
	MaxAttempts  int     `json:"max_attempts"`
	StatusCode   int     `json:"status_code,omitempty"`
	ResponseBody string  `json:"response_body,omitempty"`
	Error        string  `json:"error,omitempty"`
	DurationMS   int     `json:"duration_ms"`
	NextRetry    *string `json:"next_retry,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toDeliveryResponse(d notify.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:           d.ID,
		EventID:      d.EventID,
		EventType:    string(d.EventType),
		Status:       string(d.Status),
		Attempt:      d.Attempt,
		MaxAttempts:  d.MaxAttempts,
		StatusCode:   d.StatusCode,
		ResponseBody: d.ResponseBody,
		Error:        d.Error,
		DurationMS:   d.DurationMS,
		NextRetry:    formatTimePtr(d.NextRetry),
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    d.UpdatedAt.Format(time.RFC3339),
	}
}

// ListDeliveries returns recent CRM webhook delivery attempts.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)

	deliveries, err := h.notify.RecentDeliveries(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toDeliveryResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deliveries": out})
}
