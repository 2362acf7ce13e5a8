package mocks

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/example/cart-recovery/internal/infrastructure/store"
	"github.com/example/cart-recovery/internal/model"
)

// MockStore is an in-memory implementation of store.Store for testing.
type MockStore struct {
	mu         sync.RWMutex
	Sessions   map[string]*model.CartSession // keyed by row id
	Events     []model.CartEvent
	Recoveries map[string]*model.CartRecovery // keyed by abandoned cart id
	Campaigns  map[string]*model.RecoveryCampaign
	Emails     map[string]*model.CampaignEmail // keyed by session id
	Toggle     model.TrackingToggle
	Admins     map[string]*model.AdminUser // keyed by email

	// For tracking calls in tests
	AppendEventCalls      []model.CartEvent
	LogCampaignEmailCalls []model.CampaignEmail

	// Injectable failures
	AppendEventErr      error
	InsertSessionErr    error
	UpdateSessionErr    error
	CompleteRecoveryErr error
	LogCampaignEmailErr error

	// UpdateSessionConflicts makes the next N UpdateSession calls fail
	// with ErrVersionConflict to exercise the retry path.
	UpdateSessionConflicts int
}

// NewMockStore creates a MockStore with tracking enabled.
func NewMockStore() *MockStore {
	return &MockStore{
		Sessions:   make(map[string]*model.CartSession),
		Recoveries: make(map[string]*model.CartRecovery),
		Campaigns:  make(map[string]*model.RecoveryCampaign),
		Emails:     make(map[string]*model.CampaignEmail),
		Admins:     make(map[string]*model.AdminUser),
		Toggle: model.TrackingToggle{
			ID:            "singleton",
			IsEnabled:     true,
			LastToggledAt: time.Now(),
		},
	}
}

// Sessions

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (*model.CartSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *model.CartSession
	for _, s := range m.Sessions {
		if s.SessionID != sessionID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	cp := *latest
	return &cp, true, nil
}

func (m *MockStore) GetSessionByID(ctx context.Context, id string) (*model.CartSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.Sessions[id]
	if !ok {
		return nil, false, nil
	}
	cp := *s
	return &cp, true, nil
}

func (m *MockStore) InsertSession(ctx context.Context, s *model.CartSession) error {
	if m.InsertSessionErr != nil {
		return m.InsertSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.Sessions[s.ID] = &cp
	return nil
}

func (m *MockStore) UpdateSession(ctx context.Context, s *model.CartSession) error {
	if m.UpdateSessionErr != nil {
		return m.UpdateSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateSessionConflicts > 0 {
		m.UpdateSessionConflicts--
		return store.ErrVersionConflict
	}

	current, ok := m.Sessions[s.ID]
	if !ok || current.Version != s.Version {
		return store.ErrVersionConflict
	}
	cp := *s
	cp.Version++
	m.Sessions[s.ID] = &cp
	s.Version++
	return nil
}

func (m *MockStore) SweepAbandoned(ctx context.Context, cutoff, abandonedAt time.Time) ([]model.CartSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flipped []model.CartSession
	for _, s := range m.Sessions {
		if s.Status == model.StatusActive && s.UpdatedAt.Before(cutoff) {
			s.Status = model.StatusAbandoned
			t := abandonedAt
			s.AbandonedAt = &t
			s.Version++
			flipped = append(flipped, *s)
		}
	}
	return flipped, nil
}

func (m *MockStore) ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]model.CartSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CartSession
	for _, s := range m.Sessions {
		if s.Status == status {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Event log

func (m *MockStore) AppendEvent(ctx context.Context, ev *model.CartEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendEventCalls = append(m.AppendEventCalls, *ev)
	if m.AppendEventErr != nil {
		return m.AppendEventErr
	}
	m.Events = append(m.Events, *ev)
	return nil
}

func (m *MockStore) ListEventsBySession(ctx context.Context, sessionID string) ([]model.CartEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CartEvent
	for _, ev := range m.Events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// EventsOfType returns logged events matching the given type.
func (m *MockStore) EventsOfType(eventType string) []model.CartEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CartEvent
	for _, ev := range m.Events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Recoveries

func (m *MockStore) GetRecoveryByCart(ctx context.Context, abandonedCartID string) (*model.CartRecovery, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.Recoveries[abandonedCartID]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (m *MockStore) CompleteRecovery(ctx context.Context, rec *model.CartRecovery, ev *model.CartEvent) error {
	if m.CompleteRecoveryErr != nil {
		return m.CompleteRecoveryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.Recoveries[rec.AbandonedCartID] = &cp
	if s, ok := m.Sessions[rec.AbandonedCartID]; ok {
		s.Status = model.StatusRecovered
		s.Version++
	}
	m.Events = append(m.Events, *ev)
	return nil
}

func (m *MockStore) ListRecoveries(ctx context.Context) ([]model.CartRecovery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.CartRecovery, 0, len(m.Recoveries))
	for _, rec := range m.Recoveries {
		out = append(out, *rec)
	}
	return out, nil
}

// Campaigns

func (m *MockStore) InsertCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.Campaigns[c.ID] = &cp
	return nil
}

func (m *MockStore) GetCampaign(ctx context.Context, id string) (*model.RecoveryCampaign, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.Campaigns[id]
	if !ok {
		return nil, false, nil
	}
	cp := *c
	return &cp, true, nil
}

func (m *MockStore) ListCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.RecoveryCampaign, 0, len(m.Campaigns))
	for _, c := range m.Campaigns {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MockStore) ListActiveCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.RecoveryCampaign
	for _, c := range m.Campaigns {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MockStore) UpdateCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Campaigns[c.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *c
	m.Campaigns[c.ID] = &cp
	return nil
}

func (m *MockStore) DeleteCampaign(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Campaigns, id)
	return nil
}

func (m *MockStore) CampaignStats(ctx context.Context, campaignID string) (*model.CampaignStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &model.CampaignStats{CampaignID: campaignID}
	for _, em := range m.Emails {
		if em.CampaignID != campaignID {
			continue
		}
		stats.EmailsSent++
		if em.Status == model.EmailOpened || em.Status == model.EmailClicked {
			stats.EmailsOpened++
		}
		if em.Status == model.EmailClicked {
			stats.EmailsClicked++
		}
		for _, s := range m.Sessions {
			if s.SessionID != em.SessionID {
				continue
			}
			if _, recovered := m.Recoveries[s.ID]; recovered {
				stats.Recovered++
				break
			}
		}
	}
	if stats.EmailsSent > 0 {
		stats.RecoveryRate = float64(stats.Recovered) / float64(stats.EmailsSent) * 100
	}
	return stats, nil
}

// Campaign emails

func (m *MockStore) GetCampaignEmail(ctx context.Context, sessionID string) (*model.CampaignEmail, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	em, ok := m.Emails[sessionID]
	if !ok {
		return nil, false, nil
	}
	cp := *em
	return &cp, true, nil
}

func (m *MockStore) CountCampaignEmails(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Mirrors the Postgres upsert model: resends keep one row per
	// session and the send count is its email number.
	if em, ok := m.Emails[sessionID]; ok {
		return em.EmailNumber, nil
	}
	return 0, nil
}

func (m *MockStore) LogCampaignEmail(ctx context.Context, em *model.CampaignEmail, ev *model.CartEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LogCampaignEmailCalls = append(m.LogCampaignEmailCalls, *em)
	if m.LogCampaignEmailErr != nil {
		return m.LogCampaignEmailErr
	}
	cp := *em
	m.Emails[em.SessionID] = &cp
	m.Events = append(m.Events, *ev)
	return nil
}

func (m *MockStore) UpdateEmailStatus(ctx context.Context, messageID string, status model.EmailStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, em := range m.Emails {
		if em.MessageID == messageID && em.Status.Advances(status) {
			em.Status = status
		}
	}
	return nil
}

// Toggle

func (m *MockStore) GetToggle(ctx context.Context) (*model.TrackingToggle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := m.Toggle
	return &cp, nil
}

func (m *MockStore) SetToggle(ctx context.Context, enabled bool, by, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Toggle.IsEnabled = enabled
	m.Toggle.LastToggledBy = by
	m.Toggle.LastToggledAt = time.Now()
	if description != "" {
		m.Toggle.Description = description
	}
	return nil
}

// Admin users

func (m *MockStore) GetAdminByEmail(ctx context.Context, email string) (*model.AdminUser, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.Admins[strings.ToLower(email)]
	if !ok {
		return nil, false, nil
	}
	cp := *u
	return &cp, true, nil
}

// Analytics

func (m *MockStore) AbandonedCartStats(ctx context.Context) (*model.AbandonedStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats model.AbandonedStats
	for _, s := range m.Sessions {
		if s.Status == model.StatusAbandoned {
			stats.Count++
			stats.TotalValue += s.TotalAmount
		}
	}
	if stats.Count > 0 {
		stats.AverageValue = stats.TotalValue / float64(stats.Count)
	}
	return &stats, nil
}

func (m *MockStore) RecoveredCartStats(ctx context.Context) (*model.RecoveredStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats model.RecoveredStats
	var hours float64
	for _, rec := range m.Recoveries {
		stats.Count++
		stats.TotalRecovered += rec.RecoveryAmount
		hours += rec.TimeToRecoveryHours
	}
	if stats.Count > 0 {
		stats.AverageHoursToRecover = hours / float64(stats.Count)
	}
	return &stats, nil
}
