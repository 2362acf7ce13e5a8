package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/cart-recovery/internal/infrastructure/store"
	"github.com/example/cart-recovery/internal/model"
)

// DefaultAbandonThreshold is how long an active session may sit
// untouched before the sweep flips it to abandoned.
const DefaultAbandonThreshold = 24 * time.Hour

// maxUpdateRetries bounds the compare-and-swap retry loop on
// concurrent session updates.
const maxUpdateRetries = 3

var (
	ErrTrackingDisabled = errors.New("cart abandonment tracking is disabled")
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrMissingEmail     = errors.New("email is required")
	ErrEmptyCart        = errors.New("cart has no items")
	ErrInvalidProduct   = errors.New("product_id is required")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrSessionNotFound  = errors.New("cart session not found")
)

// TrackInput carries one tracking call from the storefront.
type TrackInput struct {
	SessionID     string           `json:"sessionId"`
	UserID        string           `json:"userId,omitempty"`
	Email         string           `json:"email"`
	CustomerName  string           `json:"customerName,omitempty"`
	ItemCount     int              `json:"itemCount"`
	TotalAmount   float64          `json:"totalAmount"`
	Items         []model.CartItem `json:"items,omitempty"`
	ProductID     string           `json:"productId,omitempty"`
	Quantity      int              `json:"quantity,omitempty"`
	Price         float64          `json:"price,omitempty"`
	Metadata      json.RawMessage  `json:"metadata,omitempty"`
}

// Service implements the cart session tracker: upserts session state,
// appends lifecycle events and runs the abandonment sweep.
type Service struct {
	store     store.Store
	events    store.EventSink
	threshold time.Duration
	now       func() time.Time
}

// NewService creates a tracker. events may be nil, in which case the
// store's own event log is used.
func NewService(st store.Store, events store.EventSink, threshold time.Duration) *Service {
	if events == nil {
		events = st
	}
	if threshold <= 0 {
		threshold = DefaultAbandonThreshold
	}
	return &Service{
		store:     st,
		events:    events,
		threshold: threshold,
		now:       time.Now,
	}
}

// checkEnabled short-circuits every tracking operation when the
// abandonment toggle is off. Nothing is written past this point.
func (s *Service) checkEnabled(ctx context.Context) error {
	toggle, err := s.store.GetToggle(ctx)
	if err != nil {
		return fmt.Errorf("load tracking toggle: %w", err)
	}
	if !toggle.IsEnabled {
		return ErrTrackingDisabled
	}
	return nil
}

func (s *Service) validate(in TrackInput) error {
	if in.SessionID == "" {
		return ErrMissingSessionID
	}
	// Anonymous guests are not tracked.
	if in.Email == "" {
		return ErrMissingEmail
	}
	return nil
}

// TrackView records a cart view. An empty cart is an invalid state for
// a view and is rejected.
func (s *Service) TrackView(ctx context.Context, in TrackInput) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if in.ItemCount <= 0 || in.TotalAmount <= 0 {
		return nil, ErrEmptyCart
	}

	sess, err := s.upsert(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	return sess, s.appendEvent(ctx, sess.SessionID, EventViewCart, in)
}

// TrackAdd records an item added to the cart.
func (s *Service) TrackAdd(ctx context.Context, in TrackInput) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if in.ProductID == "" {
		return nil, ErrInvalidProduct
	}
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	sess, err := s.upsert(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	return sess, s.appendEvent(ctx, sess.SessionID, EventAddItem, in)
}

// TrackRemove records an item removed from the cart.
func (s *Service) TrackRemove(ctx context.Context, in TrackInput) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if in.ProductID == "" {
		return nil, ErrInvalidProduct
	}

	sess, err := s.upsert(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	return sess, s.appendEvent(ctx, sess.SessionID, EventRemoveItem, in)
}

// TrackAbandon is the explicit client-side abandon transition (e.g.
// beforeunload). An empty cart is allowed: the user may have cleared it
// before leaving.
func (s *Service) TrackAbandon(ctx context.Context, in TrackInput) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	sess, err := s.upsert(ctx, in, func(sess *model.CartSession) {
		if sess.Status == model.StatusActive {
			sess.Status = model.StatusAbandoned
			t := now
			sess.AbandonedAt = &t
		}
	})
	if err != nil {
		return nil, err
	}
	return sess, s.appendEvent(ctx, sess.SessionID, EventCartAbandoned, in)
}

// TrackComplete marks the session completed after checkout succeeds.
// An empty cart is allowed here as well.
func (s *Service) TrackComplete(ctx context.Context, in TrackInput) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if err := s.validate(in); err != nil {
		return nil, err
	}

	sess, err := s.upsert(ctx, in, func(sess *model.CartSession) {
		sess.Status = model.StatusCompleted
	})
	if err != nil {
		return nil, err
	}
	return sess, s.appendEvent(ctx, sess.SessionID, EventCartCompleted, in)
}

// MergeSession re-keys an existing session onto a new session token,
// used when a guest browser session turns into an authenticated one.
func (s *Service) MergeSession(ctx context.Context, oldSessionID, newSessionID, email string) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if oldSessionID == "" || newSessionID == "" {
		return nil, ErrMissingSessionID
	}
	if email == "" {
		return nil, ErrMissingEmail
	}

	for attempt := 0; ; attempt++ {
		sess, ok, err := s.store.GetSession(ctx, oldSessionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSessionNotFound
		}

		sess.SessionID = newSessionID
		sess.CustomerEmail = email
		sess.UpdatedAt = s.now()
		err = s.store.UpdateSession(ctx, sess)
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxUpdateRetries {
			continue
		}
		if err != nil {
			return nil, err
		}

		metadata, _ := json.Marshal(map[string]string{"from": oldSessionID, "to": newSessionID})
		return sess, s.appendEvent(ctx, newSessionID, EventMergeSession, TrackInput{Metadata: metadata})
	}
}

// SweepAbandoned flips active sessions untouched for longer than the
// threshold to abandoned and logs one cart_abandoned event per flipped
// session. Idempotent: rows already abandoned keep their abandonedAt.
func (s *Service) SweepAbandoned(ctx context.Context) (int, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	flipped, err := s.store.SweepAbandoned(ctx, now.Add(-s.threshold), now)
	if err != nil {
		return 0, fmt.Errorf("abandonment sweep: %w", err)
	}

	for _, sess := range flipped {
		ev := &model.CartEvent{
			ID:        uuid.New().String(),
			SessionID: sess.SessionID,
			EventType: EventCartAbandoned,
			CreatedAt: now,
		}
		if err := s.events.AppendEvent(ctx, ev); err != nil {
			log.Printf("[Tracking] Failed to log cart_abandoned for session %s: %v", sess.SessionID, err)
		}
	}
	return len(flipped), nil
}

// upsert creates or updates the session row for the input, retrying on
// version conflicts. mutate, if set, runs against the loaded session
// after the counters are applied.
func (s *Service) upsert(ctx context.Context, in TrackInput, mutate func(*model.CartSession)) (*model.CartSession, error) {
	for attempt := 0; ; attempt++ {
		now := s.now()
		sess, ok, err := s.store.GetSession(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}

		if !ok {
			sess = &model.CartSession{
				ID:            uuid.New().String(),
				SessionID:     in.SessionID,
				UserID:        in.UserID,
				CustomerEmail: in.Email,
				CustomerName:  in.CustomerName,
				ItemCount:     in.ItemCount,
				TotalAmount:   in.TotalAmount,
				Items:         marshalItems(in.Items),
				Status:        model.StatusActive,
				Version:       1,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if mutate != nil {
				mutate(sess)
			}
			if err := s.store.InsertSession(ctx, sess); err != nil {
				return nil, err
			}
			return sess, nil
		}

		sess.ItemCount = in.ItemCount
		sess.TotalAmount = in.TotalAmount
		if in.UserID != "" {
			sess.UserID = in.UserID
		}
		if in.Email != "" {
			sess.CustomerEmail = in.Email
		}
		if in.CustomerName != "" {
			sess.CustomerName = in.CustomerName
		}
		if items := marshalItems(in.Items); items != nil {
			sess.Items = items
		}
		if mutate != nil {
			mutate(sess)
		}
		sess.UpdatedAt = now

		err = s.store.UpdateSession(ctx, sess)
		if errors.Is(err, store.ErrVersionConflict) && attempt < maxUpdateRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func (s *Service) appendEvent(ctx context.Context, sessionID, eventType string, in TrackInput) error {
	ev := &model.CartEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Metadata:  in.Metadata,
		CreatedAt: s.now(),
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func marshalItems(items []model.CartItem) json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return data
}
