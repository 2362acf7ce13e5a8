package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/cart-recovery/internal/model"
)

// ErrVersionConflict is returned when a session update loses the
// compare-and-swap on the version column.
var ErrVersionConflict = errors.New("session version conflict")

// EventSink appends one row to the append-only cart event log.
type EventSink interface {
	AppendEvent(ctx context.Context, ev *model.CartEvent) error
}

// Store is the persistence boundary for the tracking and recovery flows.
type Store interface {
	EventSink

	// Sessions
	GetSession(ctx context.Context, sessionID string) (*model.CartSession, bool, error)
	GetSessionByID(ctx context.Context, id string) (*model.CartSession, bool, error)
	InsertSession(ctx context.Context, s *model.CartSession) error
	// UpdateSession writes the session guarded by its version and bumps
	// it; returns ErrVersionConflict when the row moved underneath.
	UpdateSession(ctx context.Context, s *model.CartSession) error
	// SweepAbandoned flips active sessions untouched since the cutoff to
	// abandoned and returns the newly flipped rows. Rows already
	// abandoned are left alone, so concurrent sweeps are safe.
	SweepAbandoned(ctx context.Context, cutoff, abandonedAt time.Time) ([]model.CartSession, error)
	ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]model.CartSession, error)

	// Event log
	ListEventsBySession(ctx context.Context, sessionID string) ([]model.CartEvent, error)

	// Recoveries
	GetRecoveryByCart(ctx context.Context, abandonedCartID string) (*model.CartRecovery, bool, error)
	// CompleteRecovery inserts the recovery row, appends the completion
	// event and marks the session recovered in one transaction.
	CompleteRecovery(ctx context.Context, rec *model.CartRecovery, ev *model.CartEvent) error
	ListRecoveries(ctx context.Context) ([]model.CartRecovery, error)

	// Campaigns
	InsertCampaign(ctx context.Context, c *model.RecoveryCampaign) error
	GetCampaign(ctx context.Context, id string) (*model.RecoveryCampaign, bool, error)
	ListCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error)
	ListActiveCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error)
	UpdateCampaign(ctx context.Context, c *model.RecoveryCampaign) error
	DeleteCampaign(ctx context.Context, id string) error
	CampaignStats(ctx context.Context, campaignID string) (*model.CampaignStats, error)

	// Campaign emails
	GetCampaignEmail(ctx context.Context, sessionID string) (*model.CampaignEmail, bool, error)
	// CountCampaignEmails reports the total number of recovery emails
	// sent to the session, resends included.
	CountCampaignEmails(ctx context.Context, sessionID string) (int, error)
	// LogCampaignEmail upserts the dispatch-log row (resend updates the
	// existing row) and appends the event in one transaction.
	LogCampaignEmail(ctx context.Context, em *model.CampaignEmail, ev *model.CartEvent) error
	UpdateEmailStatus(ctx context.Context, messageID string, status model.EmailStatus) error

	// Toggle
	GetToggle(ctx context.Context) (*model.TrackingToggle, error)
	SetToggle(ctx context.Context, enabled bool, by, description string) error

	// Admin users
	GetAdminByEmail(ctx context.Context, email string) (*model.AdminUser, bool, error)

	// Analytics
	AbandonedCartStats(ctx context.Context) (*model.AbandonedStats, error)
	RecoveredCartStats(ctx context.Context) (*model.RecoveredStats, error)
}
