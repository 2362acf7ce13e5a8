package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/cart-recovery/internal/recovery"
	"github.com/example/cart-recovery/internal/tracking"
)

// respondSuccess writes the {"success": true, ...} envelope with the
// given extra fields.
func respondSuccess(w http.ResponseWriter, status int, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondFailure writes the {"success": false, "error": ...} envelope.
func respondFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// respondError maps a service error onto the HTTP status taxonomy:
// validation and business-rule violations are 400, missing entities
// 404, everything else 500.
func respondError(w http.ResponseWriter, err error) {
	respondFailure(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, recovery.ErrCartNotFound),
		errors.Is(err, recovery.ErrCampaignNotFound),
		errors.Is(err, tracking.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracking.ErrTrackingDisabled),
		errors.Is(err, tracking.ErrMissingSessionID),
		errors.Is(err, tracking.ErrMissingEmail),
		errors.Is(err, tracking.ErrEmptyCart),
		errors.Is(err, tracking.ErrInvalidProduct),
		errors.Is(err, tracking.ErrInvalidQuantity),
		errors.Is(err, recovery.ErrEmailMismatch),
		errors.Is(err, recovery.ErrAlreadyRecovered),
		errors.Is(err, recovery.ErrNeverAbandoned),
		errors.Is(err, recovery.ErrNoCustomerEmail),
		errors.Is(err, recovery.ErrMaxEmailsReached),
		errors.Is(err, recovery.ErrMissingCartID),
		errors.Is(err, recovery.ErrInvalidCampaign):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body. sendBeacon posts arrive as
// text/plain, so the content type is ignored and the bytes are parsed
// as JSON either way.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(data, v)
}
