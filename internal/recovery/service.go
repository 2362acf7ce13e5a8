package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/cart-recovery/internal/infrastructure/store"
	"github.com/example/cart-recovery/internal/model"
	"github.com/example/cart-recovery/internal/tracking"
)

var (
	ErrCartNotFound     = errors.New("cart session not found")
	ErrEmailMismatch    = errors.New("email mismatch")
	ErrNeverAbandoned   = errors.New("cart was never abandoned")
	ErrAlreadyRecovered = errors.New("cart already recovered")
	ErrNoCustomerEmail  = errors.New("no customer email found")
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrMaxEmailsReached = errors.New("campaign email limit reached for this cart")
	ErrMissingCartID    = errors.New("cartId is required")
	ErrInvalidCampaign  = errors.New("campaign name and subject are required")
)

// EmailSender delivers one recovery email and returns the provider
// message id.
type EmailSender interface {
	SendRecovery(ctx context.Context, to, name string, campaign *model.RecoveryCampaign, session *model.CartSession) (string, error)
}

// CompleteInput is the payload of a recovery completion call.
type CompleteInput struct {
	SessionID      string          `json:"sessionId"`
	RecoveryCartID string          `json:"recoveryCartId"`
	RecoveryEmail  string          `json:"recoveryEmail"`
	CartData       json.RawMessage `json:"cartData,omitempty"`
}

// Service implements recovery completion, campaign management and
// recovery email dispatch.
type Service struct {
	store  store.Store
	sender EmailSender
	now    func() time.Time
}

func NewService(st store.Store, sender EmailSender) *Service {
	return &Service{store: st, sender: sender, now: time.Now}
}

func (s *Service) checkEnabled(ctx context.Context) error {
	toggle, err := s.store.GetToggle(ctx)
	if err != nil {
		return fmt.Errorf("load tracking toggle: %w", err)
	}
	if !toggle.IsEnabled {
		return tracking.ErrTrackingDisabled
	}
	return nil
}

// Complete closes the loop on an abandoned cart. Checks run in order:
// the cart exists, the email matches exactly, the cart was abandoned,
// and no recovery exists yet. The recovery row, the session status flip
// and the recovery_completed event are written in one transaction.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (*model.CartRecovery, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if in.RecoveryCartID == "" {
		return nil, ErrMissingCartID
	}
	if in.RecoveryEmail == "" {
		return nil, ErrNoCustomerEmail
	}

	sess, ok, err := s.store.GetSessionByID(ctx, in.RecoveryCartID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartNotFound
	}

	// Exact match only; recovery fails closed on any mismatch.
	if sess.CustomerEmail == "" || sess.CustomerEmail != in.RecoveryEmail {
		return nil, ErrEmailMismatch
	}
	if sess.AbandonedAt == nil {
		return nil, ErrNeverAbandoned
	}

	if _, exists, err := s.store.GetRecoveryByCart(ctx, in.RecoveryCartID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyRecovered
	}

	now := s.now()
	rec := &model.CartRecovery{
		ID:                  uuid.New().String(),
		AbandonedCartID:     sess.ID,
		RecoverySessionID:   in.SessionID,
		CustomerEmail:       sess.CustomerEmail,
		RecoveryAmount:      sess.TotalAmount,
		ItemCount:           sess.ItemCount,
		TimeToRecoveryHours: now.Sub(*sess.AbandonedAt).Hours(),
		RecoveredAt:         now,
	}
	ev := &model.CartEvent{
		ID:        uuid.New().String(),
		SessionID: sess.SessionID,
		EventType: tracking.EventRecoveryCompleted,
		Metadata:  in.CartData,
		CreatedAt: now,
	}

	if err := s.store.CompleteRecovery(ctx, rec, ev); err != nil {
		return nil, fmt.Errorf("complete recovery: %w", err)
	}
	return rec, nil
}

// CartData returns the stored cart snapshot for a recovery landing
// page to restore.
func (s *Service) CartData(ctx context.Context, cartID string) (*model.CartSession, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if cartID == "" {
		return nil, ErrMissingCartID
	}

	sess, ok, err := s.store.GetSessionByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartNotFound
	}
	return sess, nil
}

// SendEmail dispatches one recovery email for an abandoned cart. The
// send and the dispatch-log write form one unit: a provider failure
// leaves no campaign_emails row.
func (s *Service) SendEmail(ctx context.Context, cartID, campaignID string) (*model.CampaignEmail, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if cartID == "" {
		return nil, ErrMissingCartID
	}

	sess, ok, err := s.store.GetSessionByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartNotFound
	}
	if sess.CustomerEmail == "" {
		return nil, ErrNoCustomerEmail
	}
	if sess.AbandonedAt == nil {
		return nil, ErrNeverAbandoned
	}

	var campaign *model.RecoveryCampaign
	if campaignID != "" {
		c, ok, err := s.store.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCampaignNotFound
		}
		campaign = c

		// MaxEmails caps recovery emails per cart in total, not per
		// campaign: a cart that already received its reminders is not
		// re-targeted by a second campaign.
		sent, err := s.store.CountCampaignEmails(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		if campaign.MaxEmails > 0 && sent >= campaign.MaxEmails {
			return nil, ErrMaxEmailsReached
		}
	}

	messageID, err := s.sender.SendRecovery(ctx, sess.CustomerEmail, sess.CustomerName, campaign, sess)
	if err != nil {
		return nil, fmt.Errorf("send recovery email: %w", err)
	}

	now := s.now()
	emailNumber := 1
	if existing, ok, err := s.store.GetCampaignEmail(ctx, sess.SessionID); err != nil {
		return nil, err
	} else if ok {
		emailNumber = existing.EmailNumber + 1
	}

	em := &model.CampaignEmail{
		ID:            uuid.New().String(),
		SessionID:     sess.SessionID,
		CustomerEmail: sess.CustomerEmail,
		CustomerName:  sess.CustomerName,
		EmailNumber:   emailNumber,
		Status:        model.EmailSent,
		SentAt:        now,
		MessageID:     messageID,
	}
	if campaign != nil {
		em.CampaignID = campaign.ID
	}
	ev := &model.CartEvent{
		ID:        uuid.New().String(),
		SessionID: sess.SessionID,
		EventType: tracking.EventRecoverCart,
		CreatedAt: now,
	}

	if err := s.store.LogCampaignEmail(ctx, em, ev); err != nil {
		return nil, fmt.Errorf("log campaign email: %w", err)
	}
	return em, nil
}

// DispatchAbandoned sends the first active campaign's email for an
// abandoned session, used by the async notifier. Sessions that already
// hit the campaign's email limit are skipped.
func (s *Service) DispatchAbandoned(ctx context.Context, sessionID string) (*model.CampaignEmail, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}

	sess, ok, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCartNotFound
	}

	campaigns, err := s.store.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, nil
	}
	return s.SendEmail(ctx, sess.ID, campaigns[0].ID)
}

// RecordEmailEvent applies an engagement webhook (opened/clicked) to
// the dispatch log. Transitions only move forward.
func (s *Service) RecordEmailEvent(ctx context.Context, messageID string, status model.EmailStatus) error {
	if err := s.checkEnabled(ctx); err != nil {
		return err
	}
	if messageID == "" {
		return errors.New("messageId is required")
	}
	if status != model.EmailOpened && status != model.EmailClicked {
		return fmt.Errorf("unsupported email event status %q", status)
	}
	return s.store.UpdateEmailStatus(ctx, messageID, status)
}

// Campaign management

func (s *Service) CreateCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	if err := s.checkEnabled(ctx); err != nil {
		return err
	}
	if c.Name == "" || c.Subject == "" {
		return ErrInvalidCampaign
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.DelayHours <= 0 {
		c.DelayHours = int(tracking.DefaultAbandonThreshold.Hours())
	}
	if c.MaxEmails <= 0 {
		c.MaxEmails = 1
	}
	c.CreatedAt = s.now()
	return s.store.InsertCampaign(ctx, c)
}

func (s *Service) GetCampaign(ctx context.Context, id string) (*model.RecoveryCampaign, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	c, ok, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

func (s *Service) ListCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	return s.store.ListCampaigns(ctx)
}

func (s *Service) UpdateCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	if err := s.checkEnabled(ctx); err != nil {
		return err
	}
	if c.Name == "" || c.Subject == "" {
		return ErrInvalidCampaign
	}
	if _, ok, err := s.store.GetCampaign(ctx, c.ID); err != nil {
		return err
	} else if !ok {
		return ErrCampaignNotFound
	}
	return s.store.UpdateCampaign(ctx, c)
}

func (s *Service) DeleteCampaign(ctx context.Context, id string) error {
	if err := s.checkEnabled(ctx); err != nil {
		return err
	}
	if _, ok, err := s.store.GetCampaign(ctx, id); err != nil {
		return err
	} else if !ok {
		return ErrCampaignNotFound
	}
	return s.store.DeleteCampaign(ctx, id)
}

// CampaignStats derives dispatch counters for one campaign. Recovery
// counts join the dispatch log against carts_recovered instead of
// reusing the clicked count.
func (s *Service) CampaignStats(ctx context.Context, campaignID string) (*model.CampaignStats, error) {
	if err := s.checkEnabled(ctx); err != nil {
		return nil, err
	}
	if _, ok, err := s.store.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrCampaignNotFound
	}
	return s.store.CampaignStats(ctx, campaignID)
}
