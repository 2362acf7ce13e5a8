package api

import (
	"log"
	"net/http"

	"github.com/example/cart-recovery/internal/api/middleware"
	"github.com/example/cart-recovery/internal/infrastructure/store"
	"github.com/example/cart-recovery/internal/model"
	"github.com/example/cart-recovery/internal/tracking"
)

// AnalyticsHandlers serves the read-only admin reporting endpoints and
// the tracking toggle.
type AnalyticsHandlers struct {
	store   store.Store
	tracker *tracking.Service
}

func NewAnalyticsHandlers(st store.Store, tracker *tracking.Service) *AnalyticsHandlers {
	return &AnalyticsHandlers{store: st, tracker: tracker}
}

// AbandonedCarts handles GET /analytics/abandoned-carts. The sweep runs
// inline first, so the listing is current without a background job.
func (h *AnalyticsHandlers) AbandonedCarts(w http.ResponseWriter, r *http.Request) {
	if _, err := h.tracker.SweepAbandoned(r.Context()); err != nil {
		respondError(w, err)
		return
	}

	sessions, err := h.store.ListSessionsByStatus(r.Context(), model.StatusAbandoned)
	if err != nil {
		respondError(w, err)
		return
	}
	stats, err := h.store.AbandonedCartStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"carts": sessions, "stats": stats})
}

// RecoveredCarts handles GET /analytics/recovered-carts.
func (h *AnalyticsHandlers) RecoveredCarts(w http.ResponseWriter, r *http.Request) {
	recoveries, err := h.store.ListRecoveries(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	stats, err := h.store.RecoveredCartStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"carts": recoveries, "stats": stats})
}

// Toggle handles GET and PUT /admin/tracking-toggle.
func (h *AnalyticsHandlers) Toggle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		toggle, err := h.store.GetToggle(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, map[string]any{"toggle": toggle})

	case http.MethodPut:
		var req struct {
			IsEnabled   bool   `json:"isEnabled"`
			Description string `json:"description,omitempty"`
		}
		if err := decodeBody(r, &req); err != nil {
			respondFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}

		by := middleware.GetUserEmail(r.Context())
		if err := h.store.SetToggle(r.Context(), req.IsEnabled, by, req.Description); err != nil {
			respondError(w, err)
			return
		}
		log.Printf("[API] Tracking toggle set to %t by %s", req.IsEnabled, by)

		toggle, err := h.store.GetToggle(r.Context())
		if err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, map[string]any{"toggle": toggle})

	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
