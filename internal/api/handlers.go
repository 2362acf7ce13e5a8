package api

import (
	"context"
	"net/http"

	"github.com/example/cart-recovery/internal/api/middleware"
	"github.com/example/cart-recovery/internal/model"
	"github.com/example/cart-recovery/internal/tracking"
)

// Handlers serves the cart tracking endpoint group.
type Handlers struct {
	tracker *tracking.Service
}

func NewHandlers(tracker *tracking.Service) *Handlers {
	return &Handlers{tracker: tracker}
}

type trackFunc func(ctx context.Context, in tracking.TrackInput) (*model.CartSession, error)

// track decodes the request, fills the email from the JWT claims when
// the body omits it, and runs one tracking operation.
func (h *Handlers) track(w http.ResponseWriter, r *http.Request, fn trackFunc) {
	var in tracking.TrackInput
	if err := decodeBody(r, &in); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.Email == "" {
		in.Email = middleware.GetUserEmail(r.Context())
	}

	sess, err := fn(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"session": sess})
}

func (h *Handlers) TrackView(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, h.tracker.TrackView)
}

func (h *Handlers) TrackAdd(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, h.tracker.TrackAdd)
}

func (h *Handlers) TrackRemove(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, h.tracker.TrackRemove)
}

func (h *Handlers) TrackAbandon(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, h.tracker.TrackAbandon)
}

func (h *Handlers) TrackComplete(w http.ResponseWriter, r *http.Request) {
	h.track(w, r, h.tracker.TrackComplete)
}

func (h *Handlers) MergeSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldSessionID string `json:"oldSessionId"`
		NewSessionID string `json:"newSessionId"`
		Email        string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		req.Email = middleware.GetUserEmail(r.Context())
	}

	sess, err := h.tracker.MergeSession(r.Context(), req.OldSessionID, req.NewSessionID, req.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"session": sess})
}

// Sweep runs the abandonment sweep on demand (admin only).
func (h *Handlers) Sweep(w http.ResponseWriter, r *http.Request) {
	flipped, err := h.tracker.SweepAbandoned(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"abandoned": flipped})
}
