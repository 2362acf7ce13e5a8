package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/cart-recovery/internal/model"
	"github.com/example/cart-recovery/internal/recovery"
	"github.com/example/cart-recovery/internal/tracking"
)

// Dispatcher sends the recovery email for an abandoned session.
// Implemented by recovery.Service.
type Dispatcher interface {
	DispatchAbandoned(ctx context.Context, sessionID string) (*model.CampaignEmail, error)
}

// Handler reacts to cart events from the stream and auto-dispatches
// recovery campaign emails for abandoned carts.
type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// HandleEvent processes one event from the stream. Only cart_abandoned
// events trigger a dispatch; everything else is ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event model.CartEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if event.EventType != tracking.EventCartAbandoned {
		return nil
	}
	return h.handleCartAbandoned(ctx, event)
}

func (h *Handler) handleCartAbandoned(ctx context.Context, event model.CartEvent) error {
	log.Printf("[Notifier] Processing cart_abandoned event for session %s", event.SessionID)

	em, err := h.dispatcher.DispatchAbandoned(ctx, event.SessionID)
	switch {
	case err == nil && em == nil:
		log.Printf("[Notifier] No active campaign, skipping session %s", event.SessionID)
		return nil
	case err == nil:
		log.Printf("[Notifier] Recovery email %d sent to %s for session %s", em.EmailNumber, em.CustomerEmail, event.SessionID)
		return nil
	case errors.Is(err, tracking.ErrTrackingDisabled),
		errors.Is(err, recovery.ErrNoCustomerEmail),
		errors.Is(err, recovery.ErrMaxEmailsReached),
		errors.Is(err, recovery.ErrNeverAbandoned),
		errors.Is(err, recovery.ErrCartNotFound):
		// Expected skips: nothing to retry.
		log.Printf("[Notifier] Skipping session %s: %v", event.SessionID, err)
		return nil
	default:
		log.Printf("[Notifier] Failed to dispatch for session %s: %v", event.SessionID, err)
		return err
	}
}
