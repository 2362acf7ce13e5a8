package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cart-recovery/internal/infrastructure/store/mocks"
	"github.com/example/cart-recovery/internal/model"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mocks.MockStore) {
	st := mocks.NewMockStore()
	svc := NewService(st, nil, 0)
	svc.now = func() time.Time { return testNow }
	return svc, st
}

func validInput() TrackInput {
	return TrackInput{
		SessionID:   "sess-123",
		Email:       "shopper@example.com",
		ItemCount:   2,
		TotalAmount: 59.98,
	}
}

// ============================================
// Validation Tests
// ============================================

func TestService_TrackView_MissingSessionID(t *testing.T) {
	svc, st := newTestService()

	in := validInput()
	in.SessionID = ""
	_, err := svc.TrackView(context.Background(), in)

	assert.ErrorIs(t, err, ErrMissingSessionID)
	assert.Empty(t, st.Sessions)
}

func TestService_TrackView_MissingEmail(t *testing.T) {
	svc, st := newTestService()

	in := validInput()
	in.Email = ""
	_, err := svc.TrackView(context.Background(), in)

	assert.ErrorIs(t, err, ErrMissingEmail)
	assert.Empty(t, st.Sessions)
}

func TestService_TrackView_EmptyCartRejected(t *testing.T) {
	svc, st := newTestService()

	tests := []struct {
		name        string
		itemCount   int
		totalAmount float64
	}{
		{"zero items", 0, 10.00},
		{"zero amount", 1, 0},
		{"negative amount", 1, -5.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.ItemCount = tt.itemCount
			in.TotalAmount = tt.totalAmount
			_, err := svc.TrackView(context.Background(), in)
			assert.ErrorIs(t, err, ErrEmptyCart)
		})
	}
	assert.Empty(t, st.Sessions)
}

func TestService_TrackAdd_InvalidProduct(t *testing.T) {
	svc, _ := newTestService()

	in := validInput()
	in.Quantity = 1
	_, err := svc.TrackAdd(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	in.ProductID = "prod-1"
	in.Quantity = 0
	_, err = svc.TrackAdd(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// ============================================
// Toggle Gating Tests
// ============================================

func TestService_Disabled_NothingWritten(t *testing.T) {
	svc, st := newTestService()
	st.Toggle.IsEnabled = false
	ctx := context.Background()

	_, err := svc.TrackView(ctx, validInput())
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	_, err = svc.TrackAbandon(ctx, validInput())
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	_, err = svc.MergeSession(ctx, "old", "new", "shopper@example.com")
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	_, err = svc.SweepAbandoned(ctx)
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	assert.Empty(t, st.Sessions)
	assert.Empty(t, st.AppendEventCalls)
}

// ============================================
// Upsert Tests
// ============================================

func TestService_TrackView_CreatesSession(t *testing.T) {
	svc, st := newTestService()

	sess, err := svc.TrackView(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "sess-123", sess.SessionID)
	assert.Equal(t, model.StatusActive, sess.Status)
	assert.Equal(t, 1, sess.Version)
	assert.Equal(t, "shopper@example.com", sess.CustomerEmail)
	assert.Equal(t, 2, sess.ItemCount)
	assert.Equal(t, 59.98, sess.TotalAmount)
	assert.Nil(t, sess.AbandonedAt)

	require.Len(t, st.AppendEventCalls, 1)
	assert.Equal(t, EventViewCart, st.AppendEventCalls[0].EventType)
	assert.Equal(t, "sess-123", st.AppendEventCalls[0].SessionID)
}

func TestService_TrackAdd_UpdatesExistingSession(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	first, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.ProductID = "prod-9"
	in.Quantity = 1
	in.Price = 19.99
	in.ItemCount = 3
	in.TotalAmount = 79.97
	sess, err := svc.TrackAdd(ctx, in)

	require.NoError(t, err)
	assert.Equal(t, first.ID, sess.ID)
	assert.Equal(t, 3, sess.ItemCount)
	assert.Equal(t, 79.97, sess.TotalAmount)
	assert.Equal(t, 2, sess.Version)

	events := st.EventsOfType(EventAddItem)
	require.Len(t, events, 1)
	assert.Equal(t, "prod-9", events[0].ProductID)
	assert.Equal(t, 1, events[0].Quantity)
	assert.Equal(t, 19.99, events[0].Price)
}

func TestService_Upsert_RetriesOnVersionConflict(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	st.UpdateSessionConflicts = 2
	sess, err := svc.TrackView(ctx, validInput())

	require.NoError(t, err)
	assert.Equal(t, 0, st.UpdateSessionConflicts)
	assert.Equal(t, 2, sess.Version)
}

func TestService_Upsert_GivesUpAfterMaxRetries(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	st.UpdateSessionConflicts = 10
	_, err = svc.TrackView(ctx, validInput())

	assert.Error(t, err)
}

// ============================================
// Abandon / Complete Tests
// ============================================

func TestService_TrackAbandon_EmptyCartAllowed(t *testing.T) {
	svc, _ := newTestService()

	in := validInput()
	in.ItemCount = 0
	in.TotalAmount = 0
	sess, err := svc.TrackAbandon(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, model.StatusAbandoned, sess.Status)
	require.NotNil(t, sess.AbandonedAt)
	assert.Equal(t, testNow, *sess.AbandonedAt)
}

func TestService_TrackAbandon_PreservesFirstAbandonedAt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.TrackAbandon(ctx, validInput())
	require.NoError(t, err)
	firstAt := *first.AbandonedAt

	svc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	second, err := svc.TrackAbandon(ctx, validInput())

	require.NoError(t, err)
	require.NotNil(t, second.AbandonedAt)
	assert.Equal(t, firstAt, *second.AbandonedAt)
}

func TestService_TrackComplete_MarksCompleted(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.ItemCount = 0
	in.TotalAmount = 0
	sess, err := svc.TrackComplete(ctx, in)

	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, sess.Status)
	assert.Len(t, st.EventsOfType(EventCartCompleted), 1)
}

// ============================================
// Merge Session Tests
// ============================================

func TestService_MergeSession_RekeysSession(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	in := validInput()
	in.SessionID = "guest-abc"
	in.Email = "guest@example.com"
	_, err := svc.TrackView(ctx, in)
	require.NoError(t, err)

	sess, err := svc.MergeSession(ctx, "guest-abc", "user-xyz", "known@example.com")

	require.NoError(t, err)
	assert.Equal(t, "user-xyz", sess.SessionID)
	assert.Equal(t, "known@example.com", sess.CustomerEmail)

	_, ok, err := st.GetSession(ctx, "user-xyz")
	require.NoError(t, err)
	assert.True(t, ok)

	events := st.EventsOfType(EventMergeSession)
	require.Len(t, events, 1)
	assert.Equal(t, "user-xyz", events[0].SessionID)
	assert.JSONEq(t, `{"from":"guest-abc","to":"user-xyz"}`, string(events[0].Metadata))
}

func TestService_MergeSession_NotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.MergeSession(context.Background(), "missing", "new", "a@b.com")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// ============================================
// Sweep Tests
// ============================================

func TestService_SweepAbandoned_FlipsStaleSessions(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	// Stale active session, 25 hours old.
	svc.now = func() time.Time { return testNow.Add(-25 * time.Hour) }
	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	// Fresh active session.
	svc.now = func() time.Time { return testNow }
	fresh := validInput()
	fresh.SessionID = "sess-fresh"
	_, err = svc.TrackView(ctx, fresh)
	require.NoError(t, err)

	n, err := svc.SweepAbandoned(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale, ok, _ := st.GetSession(ctx, "sess-123")
	require.True(t, ok)
	assert.Equal(t, model.StatusAbandoned, stale.Status)
	require.NotNil(t, stale.AbandonedAt)
	assert.Equal(t, testNow, *stale.AbandonedAt)

	unswept, ok, _ := st.GetSession(ctx, "sess-fresh")
	require.True(t, ok)
	assert.Equal(t, model.StatusActive, unswept.Status)

	events := st.EventsOfType(EventCartAbandoned)
	require.Len(t, events, 1)
	assert.Equal(t, "sess-123", events[0].SessionID)
}

func TestService_SweepAbandoned_Idempotent(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	svc.now = func() time.Time { return testNow.Add(-25 * time.Hour) }
	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow }
	n, err := svc.SweepAbandoned(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	sess, _, _ := st.GetSession(ctx, "sess-123")
	firstAt := *sess.AbandonedAt

	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	n, err = svc.SweepAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	sess, _, _ = st.GetSession(ctx, "sess-123")
	assert.Equal(t, firstAt, *sess.AbandonedAt)
}

func TestService_SweepAbandoned_EventFailureDoesNotAbort(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	svc.now = func() time.Time { return testNow.Add(-25 * time.Hour) }
	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow }
	st.AppendEventErr = assert.AnError
	n, err := svc.SweepAbandoned(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_CustomThreshold(t *testing.T) {
	st := mocks.NewMockStore()
	svc := NewService(st, nil, time.Hour)
	svc.now = func() time.Time { return testNow.Add(-90 * time.Minute) }
	ctx := context.Background()

	_, err := svc.TrackView(ctx, validInput())
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow }
	n, err := svc.SweepAbandoned(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
