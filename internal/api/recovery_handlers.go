package api

import (
	"net/http"
	"strings"

	"github.com/example/cart-recovery/internal/model"
	"github.com/example/cart-recovery/internal/recovery"
)

// RecoveryHandlers serves recovery completion, campaign management and
// email dispatch.
type RecoveryHandlers struct {
	svc *recovery.Service
}

func NewRecoveryHandlers(svc *recovery.Service) *RecoveryHandlers {
	return &RecoveryHandlers{svc: svc}
}

// Complete handles POST /recovery.
func (h *RecoveryHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	var in recovery.CompleteInput
	if err := decodeBody(r, &in); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.svc.Complete(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"recovery": rec})
}

// CartData handles GET /recovery/cart-data?cartId=.
func (h *RecoveryHandlers) CartData(w http.ResponseWriter, r *http.Request) {
	cartID := r.URL.Query().Get("cartId")
	sess, err := h.svc.CartData(r.Context(), cartID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"cart": sess})
}

// SendEmail handles POST /recovery/send-email.
func (h *RecoveryHandlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartID     string `json:"cartId"`
		CampaignID string `json:"campaignId,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	em, err := h.svc.SendEmail(r.Context(), req.CartID, req.CampaignID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"email": em})
}

// EmailEvent handles POST /recovery/email-events, the engagement
// webhook from the email provider.
func (h *RecoveryHandlers) EmailEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"messageId"`
		Event     string `json:"event"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.RecordEmailEvent(r.Context(), req.MessageID, model.EmailStatus(req.Event)); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// Campaigns handles GET and POST /recovery/campaigns.
func (h *RecoveryHandlers) Campaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listCampaigns(w, r)
	case http.MethodPost:
		h.createCampaign(w, r)
	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *RecoveryHandlers) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.svc.ListCampaigns(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	// Each campaign is listed with its dispatch-log statistics.
	type campaignWithStats struct {
		model.RecoveryCampaign
		Stats *model.CampaignStats `json:"stats"`
	}
	out := make([]campaignWithStats, 0, len(campaigns))
	for _, c := range campaigns {
		stats, err := h.svc.CampaignStats(r.Context(), c.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		out = append(out, campaignWithStats{RecoveryCampaign: c, Stats: stats})
	}
	respondSuccess(w, http.StatusOK, map[string]any{"campaigns": out})
}

func (h *RecoveryHandlers) createCampaign(w http.ResponseWriter, r *http.Request) {
	var c model.RecoveryCampaign
	if err := decodeBody(r, &c); err != nil {
		respondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.CreateCampaign(r.Context(), &c); err != nil {
		respondError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]any{"campaign": c})
}

// Campaign handles GET/PUT/DELETE /recovery/campaigns/{id}.
func (h *RecoveryHandlers) Campaign(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/recovery/campaigns/")
	if id == "" {
		respondFailure(w, http.StatusBadRequest, "campaign id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := h.svc.GetCampaign(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, map[string]any{"campaign": c})

	case http.MethodPut:
		var c model.RecoveryCampaign
		if err := decodeBody(r, &c); err != nil {
			respondFailure(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c.ID = id
		if err := h.svc.UpdateCampaign(r.Context(), &c); err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, map[string]any{"campaign": c})

	case http.MethodDelete:
		if err := h.svc.DeleteCampaign(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		respondSuccess(w, http.StatusOK, nil)

	default:
		respondFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
