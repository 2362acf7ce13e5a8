package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/cart-recovery/internal/model"
)

// EventPublisher pushes appended cart events onto the event stream.
// Satisfied by kafka.Producer; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db        *sql.DB
	publisher EventPublisher
}

// NewPostgresStore creates a PostgreSQL-backed store. The publisher is
// optional; when set, every appended cart event is also published to
// the event stream.
func NewPostgresStore(db *sql.DB, publisher EventPublisher) *PostgresStore {
	return &PostgresStore{db: db, publisher: publisher}
}

// ConnectPostgres opens and pings a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func (ps *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cart_sessions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT,
			customer_email TEXT NOT NULL,
			customer_name TEXT,
			item_count INT NOT NULL DEFAULT 0,
			total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			items JSONB,
			status TEXT NOT NULL DEFAULT 'active',
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			abandoned_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_sessions_session_id ON cart_sessions (session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_sessions_status ON cart_sessions (status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS cart_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			product_id TEXT,
			quantity INT,
			price DOUBLE PRECISION,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_events_session_id ON cart_events (session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS carts_recovered (
			id TEXT PRIMARY KEY,
			abandoned_cart_id TEXT NOT NULL UNIQUE,
			recovery_session_id TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			recovery_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			item_count INT NOT NULL DEFAULT 0,
			time_to_recovery_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			recovered_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recovery_campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			campaign_type TEXT NOT NULL,
			template TEXT NOT NULL,
			subject TEXT NOT NULL,
			delay_hours INT NOT NULL DEFAULT 24,
			discount_type TEXT,
			discount_value DOUBLE PRECISION,
			discount_code TEXT,
			max_emails INT NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_emails (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			campaign_id TEXT,
			customer_email TEXT NOT NULL,
			customer_name TEXT,
			email_number INT NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT 'sent',
			sent_at TIMESTAMPTZ NOT NULL,
			message_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_emails_session_id ON campaign_emails (session_id)`,
		`CREATE TABLE IF NOT EXISTS cart_abandonment_toggle (
			id TEXT PRIMARY KEY,
			is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			last_toggled_by TEXT,
			last_toggled_at TIMESTAMPTZ NOT NULL,
			description TEXT
		)`,
		`INSERT INTO cart_abandonment_toggle (id, is_enabled, last_toggled_at, description)
		 VALUES ('singleton', TRUE, NOW(), 'Gates cart abandonment tracking and recovery')
		 ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'admin',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := ps.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Sessions

const sessionColumns = `id, session_id, COALESCE(user_id, ''), customer_email, COALESCE(customer_name, ''),
	item_count, total_amount, items, status, version, created_at, updated_at, abandoned_at`

func scanSession(row interface{ Scan(...any) error }) (*model.CartSession, error) {
	var s model.CartSession
	var items []byte
	var abandonedAt sql.NullTime
	err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &s.CustomerEmail, &s.CustomerName,
		&s.ItemCount, &s.TotalAmount, &items, &s.Status, &s.Version,
		&s.CreatedAt, &s.UpdatedAt, &abandonedAt)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		s.Items = json.RawMessage(items)
	}
	if abandonedAt.Valid {
		t := abandonedAt.Time
		s.AbandonedAt = &t
	}
	return &s, nil
}

// GetSession returns the most recent session for an opaque session token.
func (ps *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.CartSession, bool, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM cart_sessions
		 WHERE session_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`, sessionID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (ps *PostgresStore) GetSessionByID(ctx context.Context, id string) (*model.CartSession, bool, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM cart_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (ps *PostgresStore) InsertSession(ctx context.Context, s *model.CartSession) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO cart_sessions
		 (id, session_id, user_id, customer_email, customer_name, item_count, total_amount, items, status, version, created_at, updated_at, abandoned_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.SessionID, s.UserID, s.CustomerEmail, s.CustomerName,
		s.ItemCount, s.TotalAmount, nullableJSON(s.Items), s.Status, s.Version,
		s.CreatedAt, s.UpdatedAt, nullableTime(s.AbandonedAt))
	return err
}

// UpdateSession writes the session with a compare-and-swap on version.
func (ps *PostgresStore) UpdateSession(ctx context.Context, s *model.CartSession) error {
	res, err := ps.db.ExecContext(ctx,
		`UPDATE cart_sessions SET
			session_id = $2,
			user_id = NULLIF($3, ''),
			customer_email = $4,
			customer_name = NULLIF($5, ''),
			item_count = $6,
			total_amount = $7,
			items = $8,
			status = $9,
			version = version + 1,
			updated_at = $10,
			abandoned_at = $11
		 WHERE id = $1 AND version = $12`,
		s.ID, s.SessionID, s.UserID, s.CustomerEmail, s.CustomerName,
		s.ItemCount, s.TotalAmount, nullableJSON(s.Items), s.Status,
		s.UpdatedAt, nullableTime(s.AbandonedAt), s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	s.Version++
	return nil
}

func (ps *PostgresStore) SweepAbandoned(ctx context.Context, cutoff, abandonedAt time.Time) ([]model.CartSession, error) {
	rows, err := ps.db.QueryContext(ctx,
		`UPDATE cart_sessions
		 SET status = $1, abandoned_at = $2, version = version + 1
		 WHERE status = $3 AND updated_at < $4
		 RETURNING `+sessionColumns,
		model.StatusAbandoned, abandonedAt, model.StatusActive, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flipped []model.CartSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		flipped = append(flipped, *s)
	}
	return flipped, rows.Err()
}

func (ps *PostgresStore) ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]model.CartSession, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM cart_sessions WHERE status = $1 ORDER BY updated_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.CartSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Event log

// AppendEvent persists the event and publishes it to the event stream.
// Publish failures are logged, not returned: the log row is the source
// of truth, the stream is a best-effort mirror.
func (ps *PostgresStore) AppendEvent(ctx context.Context, ev *model.CartEvent) error {
	if err := ps.insertEvent(ctx, ps.db, ev); err != nil {
		return err
	}
	ps.publish(ctx, ev)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (ps *PostgresStore) insertEvent(ctx context.Context, db execer, ev *model.CartEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO cart_events (id, session_id, event_type, product_id, quantity, price, metadata, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		ev.ID, ev.SessionID, ev.EventType, ev.ProductID, ev.Quantity, ev.Price,
		nullableJSON(ev.Metadata), ev.CreatedAt)
	return err
}

func (ps *PostgresStore) publish(ctx context.Context, ev *model.CartEvent) {
	if ps.publisher == nil {
		return
	}
	if err := ps.publisher.Publish(ctx, ev.SessionID, ev); err != nil {
		log.Printf("[Store] Failed to publish event %s (%s): %v", ev.ID, ev.EventType, err)
	}
}

func (ps *PostgresStore) ListEventsBySession(ctx context.Context, sessionID string) ([]model.CartEvent, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, COALESCE(product_id, ''), COALESCE(quantity, 0), COALESCE(price, 0), metadata, created_at
		 FROM cart_events
		 WHERE session_id = $1
		 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.CartEvent
	for rows.Next() {
		var ev model.CartEvent
		var metadata []byte
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.ProductID, &ev.Quantity, &ev.Price, &metadata, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			ev.Metadata = json.RawMessage(metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Recoveries

func (ps *PostgresStore) GetRecoveryByCart(ctx context.Context, abandonedCartID string) (*model.CartRecovery, bool, error) {
	var rec model.CartRecovery
	err := ps.db.QueryRowContext(ctx,
		`SELECT id, abandoned_cart_id, recovery_session_id, customer_email, recovery_amount, item_count, time_to_recovery_hours, recovered_at
		 FROM carts_recovered WHERE abandoned_cart_id = $1`, abandonedCartID).
		Scan(&rec.ID, &rec.AbandonedCartID, &rec.RecoverySessionID, &rec.CustomerEmail,
			&rec.RecoveryAmount, &rec.ItemCount, &rec.TimeToRecoveryHours, &rec.RecoveredAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (ps *PostgresStore) CompleteRecovery(ctx context.Context, rec *model.CartRecovery, ev *model.CartEvent) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO carts_recovered
		 (id, abandoned_cart_id, recovery_session_id, customer_email, recovery_amount, item_count, time_to_recovery_hours, recovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.AbandonedCartID, rec.RecoverySessionID, rec.CustomerEmail,
		rec.RecoveryAmount, rec.ItemCount, rec.TimeToRecoveryHours, rec.RecoveredAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE cart_sessions SET status = $1, version = version + 1, updated_at = $2 WHERE id = $3`,
		model.StatusRecovered, rec.RecoveredAt, rec.AbandonedCartID)
	if err != nil {
		return err
	}

	if err := ps.insertEvent(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	ps.publish(ctx, ev)
	return nil
}

func (ps *PostgresStore) ListRecoveries(ctx context.Context) ([]model.CartRecovery, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT id, abandoned_cart_id, recovery_session_id, customer_email, recovery_amount, item_count, time_to_recovery_hours, recovered_at
		 FROM carts_recovered ORDER BY recovered_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.CartRecovery
	for rows.Next() {
		var rec model.CartRecovery
		if err := rows.Scan(&rec.ID, &rec.AbandonedCartID, &rec.RecoverySessionID, &rec.CustomerEmail,
			&rec.RecoveryAmount, &rec.ItemCount, &rec.TimeToRecoveryHours, &rec.RecoveredAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Campaigns

const campaignColumns = `id, name, campaign_type, template, subject, delay_hours,
	COALESCE(discount_type, ''), COALESCE(discount_value, 0), COALESCE(discount_code, ''),
	max_emails, is_active, created_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.RecoveryCampaign, error) {
	var c model.RecoveryCampaign
	err := row.Scan(&c.ID, &c.Name, &c.CampaignType, &c.Template, &c.Subject, &c.DelayHours,
		&c.DiscountType, &c.DiscountValue, &c.DiscountCode, &c.MaxEmails, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (ps *PostgresStore) InsertCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO recovery_campaigns
		 (id, name, campaign_type, template, subject, delay_hours, discount_type, discount_value, discount_code, max_emails, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), $10, $11, $12)`,
		c.ID, c.Name, c.CampaignType, c.Template, c.Subject, c.DelayHours,
		c.DiscountType, c.DiscountValue, c.DiscountCode, c.MaxEmails, c.IsActive, c.CreatedAt)
	return err
}

func (ps *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.RecoveryCampaign, bool, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM recovery_campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (ps *PostgresStore) listCampaigns(ctx context.Context, query string, args ...any) ([]model.RecoveryCampaign, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []model.RecoveryCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func (ps *PostgresStore) ListCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error) {
	return ps.listCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM recovery_campaigns ORDER BY created_at DESC`)
}

func (ps *PostgresStore) ListActiveCampaigns(ctx context.Context) ([]model.RecoveryCampaign, error) {
	return ps.listCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM recovery_campaigns WHERE is_active ORDER BY delay_hours ASC, created_at ASC`)
}

func (ps *PostgresStore) UpdateCampaign(ctx context.Context, c *model.RecoveryCampaign) error {
	res, err := ps.db.ExecContext(ctx,
		`UPDATE recovery_campaigns SET
			name = $2, campaign_type = $3, template = $4, subject = $5, delay_hours = $6,
			discount_type = NULLIF($7, ''), discount_value = $8, discount_code = NULLIF($9, ''),
			max_emails = $10, is_active = $11
		 WHERE id = $1`,
		c.ID, c.Name, c.CampaignType, c.Template, c.Subject, c.DelayHours,
		c.DiscountType, c.DiscountValue, c.DiscountCode, c.MaxEmails, c.IsActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (ps *PostgresStore) DeleteCampaign(ctx context.Context, id string) error {
	_, err := ps.db.ExecContext(ctx, `DELETE FROM recovery_campaigns WHERE id = $1`, id)
	return err
}

// CampaignStats counts dispatch-log rows for one campaign. Recovered
// carts come from joining against carts_recovered on session, not from
// the clicked count.
func (ps *PostgresStore) CampaignStats(ctx context.Context, campaignID string) (*model.CampaignStats, error) {
	stats := &model.CampaignStats{CampaignID: campaignID}
	err := ps.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ($2, $3)),
			COUNT(*) FILTER (WHERE status = $3)
		 FROM campaign_emails WHERE campaign_id = $1`,
		campaignID, model.EmailOpened, model.EmailClicked).
		Scan(&stats.EmailsSent, &stats.EmailsOpened, &stats.EmailsClicked)
	if err != nil {
		return nil, err
	}

	err = ps.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT ce.session_id)
		 FROM campaign_emails ce
		 JOIN cart_sessions cs ON cs.session_id = ce.session_id
		 JOIN carts_recovered cr ON cr.abandoned_cart_id = cs.id
		 WHERE ce.campaign_id = $1`, campaignID).
		Scan(&stats.Recovered)
	if err != nil {
		return nil, err
	}

	if stats.EmailsSent > 0 {
		stats.RecoveryRate = float64(stats.Recovered) / float64(stats.EmailsSent) * 100
	}
	return stats, nil
}

// Campaign emails

func (ps *PostgresStore) GetCampaignEmail(ctx context.Context, sessionID string) (*model.CampaignEmail, bool, error) {
	var em model.CampaignEmail
	err := ps.db.QueryRowContext(ctx,
		`SELECT id, session_id, COALESCE(campaign_id, ''), customer_email, COALESCE(customer_name, ''), email_number, status, sent_at, COALESCE(message_id, '')
		 FROM campaign_emails
		 WHERE session_id = $1
		 ORDER BY sent_at DESC
		 LIMIT 1`, sessionID).
		Scan(&em.ID, &em.SessionID, &em.CampaignID, &em.CustomerEmail, &em.CustomerName,
			&em.EmailNumber, &em.Status, &em.SentAt, &em.MessageID)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &em, true, nil
}

// CountCampaignEmails reports how many recovery emails the session has
// received in total. Resends reuse the session's row and bump
// email_number, so the running count lives there rather than in the
// row count.
func (ps *PostgresStore) CountCampaignEmails(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := ps.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(email_number), 0) FROM campaign_emails WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

func (ps *PostgresStore) LogCampaignEmail(ctx context.Context, em *model.CampaignEmail, ev *model.CartEvent) error {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Resend semantics: update the existing row for the session if one
	// exists, otherwise insert a fresh one.
	res, err := tx.ExecContext(ctx,
		`UPDATE campaign_emails SET
			campaign_id = NULLIF($2, ''), customer_email = $3, customer_name = NULLIF($4, ''),
			email_number = $5, status = $6, sent_at = $7, message_id = NULLIF($8, '')
		 WHERE session_id = $1`,
		em.SessionID, em.CampaignID, em.CustomerEmail, em.CustomerName,
		em.EmailNumber, em.Status, em.SentAt, em.MessageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO campaign_emails
			 (id, session_id, campaign_id, customer_email, customer_name, email_number, status, sent_at, message_id)
			 VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''))`,
			em.ID, em.SessionID, em.CampaignID, em.CustomerEmail, em.CustomerName,
			em.EmailNumber, em.Status, em.SentAt, em.MessageID)
		if err != nil {
			return err
		}
	}

	if err := ps.insertEvent(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	ps.publish(ctx, ev)
	return nil
}

// UpdateEmailStatus moves an email's engagement status forward. Moving
// backwards (e.g. clicked -> opened) is a no-op.
func (ps *PostgresStore) UpdateEmailStatus(ctx context.Context, messageID string, status model.EmailStatus) error {
	_, err := ps.db.ExecContext(ctx,
		`UPDATE campaign_emails SET status = $2
		 WHERE message_id = $1
		   AND CASE status WHEN 'sent' THEN 1 WHEN 'opened' THEN 2 ELSE 3 END
		     < CASE $2 WHEN 'sent' THEN 1 WHEN 'opened' THEN 2 ELSE 3 END`,
		messageID, status)
	return err
}

// Toggle

func (ps *PostgresStore) GetToggle(ctx context.Context) (*model.TrackingToggle, error) {
	var t model.TrackingToggle
	err := ps.db.QueryRowContext(ctx,
		`SELECT id, is_enabled, COALESCE(last_toggled_by, ''), last_toggled_at, COALESCE(description, '')
		 FROM cart_abandonment_toggle WHERE id = 'singleton'`).
		Scan(&t.ID, &t.IsEnabled, &t.LastToggledBy, &t.LastToggledAt, &t.Description)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (ps *PostgresStore) SetToggle(ctx context.Context, enabled bool, by, description string) error {
	_, err := ps.db.ExecContext(ctx,
		`UPDATE cart_abandonment_toggle
		 SET is_enabled = $1, last_toggled_by = NULLIF($2, ''), last_toggled_at = NOW(),
		     description = COALESCE(NULLIF($3, ''), description)
		 WHERE id = 'singleton'`,
		enabled, by, description)
	return err
}

// Admin users

func (ps *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*model.AdminUser, bool, error) {
	var u model.AdminUser
	err := ps.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, name, role, is_active, created_at
		 FROM admin_users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &u, true, nil
}

// Analytics

func (ps *PostgresStore) AbandonedCartStats(ctx context.Context) (*model.AbandonedStats, error) {
	var stats model.AbandonedStats
	err := ps.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(AVG(total_amount), 0)
		 FROM cart_sessions WHERE status = $1`, model.StatusAbandoned).
		Scan(&stats.Count, &stats.TotalValue, &stats.AverageValue)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (ps *PostgresStore) RecoveredCartStats(ctx context.Context) (*model.RecoveredStats, error) {
	var stats model.RecoveredStats
	err := ps.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(recovery_amount), 0), COALESCE(AVG(time_to_recovery_hours), 0)
		 FROM carts_recovered`).
		Scan(&stats.Count, &stats.TotalRecovered, &stats.AverageHoursToRecover)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
