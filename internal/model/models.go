package model

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a tracked cart session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusAbandoned SessionStatus = "abandoned"
	StatusRecovered SessionStatus = "recovered"
	StatusCompleted SessionStatus = "completed"
)

// EmailStatus is the engagement state of a campaign email.
// Transitions only move forward: sent -> opened -> clicked.
type EmailStatus string

const (
	EmailSent    EmailStatus = "sent"
	EmailOpened  EmailStatus = "opened"
	EmailClicked EmailStatus = "clicked"
)

// emailStatusRank orders engagement states for forward-only transitions.
var emailStatusRank = map[EmailStatus]int{
	EmailSent:    1,
	EmailOpened:  2,
	EmailClicked: 3,
}

// Advances reports whether moving to the given status is a forward transition.
func (s EmailStatus) Advances(to EmailStatus) bool {
	return emailStatusRank[to] > emailStatusRank[s]
}

// CartItem is one line of the cart snapshot stored on a session.
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CartSession tracks per-browser-session cart state. One row per opaque
// session token; status flips are driven by explicit events and the
// abandonment sweep. Version backs optimistic concurrency on updates.
type CartSession struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id,omitempty"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  string          `json:"customer_name,omitempty"`
	ItemCount     int             `json:"item_count"`
	TotalAmount   float64         `json:"total_amount"`
	Items         json.RawMessage `json:"items,omitempty"`
	Status        SessionStatus   `json:"status"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	AbandonedAt   *time.Time      `json:"abandoned_at,omitempty"`
}

// CartEvent is one row of the append-only cart lifecycle log.
type CartEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	ProductID string          `json:"product_id,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Price     float64         `json:"price,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CartRecovery records a completed recovery of an abandoned cart.
// Created exactly once per abandoned cart, never updated.
type CartRecovery struct {
	ID                  string    `json:"id"`
	AbandonedCartID     string    `json:"abandoned_cart_id"`
	RecoverySessionID   string    `json:"recovery_session_id"`
	CustomerEmail       string    `json:"customer_email"`
	RecoveryAmount      float64   `json:"recovery_amount"`
	ItemCount           int       `json:"item_count"`
	TimeToRecoveryHours float64   `json:"time_to_recovery_hours"`
	RecoveredAt         time.Time `json:"recovered_at"`
}

// RecoveryCampaign configures a recovery email campaign.
type RecoveryCampaign struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CampaignType  string    `json:"campaign_type"`
	Template      string    `json:"template"`
	Subject       string    `json:"subject"`
	DelayHours    int       `json:"delay_hours"`
	DiscountType  string    `json:"discount_type,omitempty"`
	DiscountValue float64   `json:"discount_value,omitempty"`
	DiscountCode  string    `json:"discount_code,omitempty"`
	MaxEmails     int       `json:"max_emails"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// CampaignEmail is one row per recovery email send attempt.
type CampaignEmail struct {
	ID            string      `json:"id"`
	SessionID     string      `json:"session_id"`
	CampaignID    string      `json:"campaign_id,omitempty"`
	CustomerEmail string      `json:"customer_email"`
	CustomerName  string      `json:"customer_name,omitempty"`
	EmailNumber   int         `json:"email_number"`
	Status        EmailStatus `json:"status"`
	SentAt        time.Time   `json:"sent_at"`
	MessageID     string      `json:"message_id,omitempty"`
}

// CampaignStats aggregates dispatch-log counters for one campaign.
// Recovered is derived by joining campaign emails against cart
// recoveries on session, not from the clicked count.
type CampaignStats struct {
	CampaignID    string  `json:"campaign_id"`
	EmailsSent    int     `json:"emails_sent"`
	EmailsOpened  int     `json:"emails_opened"`
	EmailsClicked int     `json:"emails_clicked"`
	Recovered     int     `json:"recovered"`
	RecoveryRate  float64 `json:"recovery_rate"`
}

// TrackingToggle is the singleton switch gating all tracking and
// recovery endpoints.
type TrackingToggle struct {
	ID            string    `json:"id"`
	IsEnabled     bool      `json:"is_enabled"`
	LastToggledBy string    `json:"last_toggled_by,omitempty"`
	LastToggledAt time.Time `json:"last_toggled_at"`
	Description   string    `json:"description,omitempty"`
}

// AdminUser is a back-office account allowed to manage campaigns,
// run sweeps and read analytics.
type AdminUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AbandonedStats summarizes abandoned sessions for the analytics view.
type AbandonedStats struct {
	Count        int     `json:"count"`
	TotalValue   float64 `json:"total_value"`
	AverageValue float64 `json:"average_value"`
}

// RecoveredStats summarizes recoveries for the analytics view.
type RecoveredStats struct {
	Count                 int     `json:"count"`
	TotalRecovered        float64 `json:"total_recovered"`
	AverageHoursToRecover float64 `json:"average_hours_to_recover"`
}
