package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/porchlist/mailroom/pkg/pg"
)

// PGStorage implements all dispatch repository ports against PostgreSQL.
type PGStorage struct {
	db *pgxpool.Pool
}

// NewPGStorage creates a postgres-backed storage over the given pool.
func NewPGStorage(db *pgxpool.Pool) *PGStorage {
	return &PGStorage{db: db}
}

// LoadCatalog reads the email type catalog. Called once at startup; the
// resulting value is handed to the orchestrator.
func (s *PGStorage) LoadCatalog(ctx context.Context) (Catalog, error) {
	query := `
        SELECT email_type, description, enabled
        FROM email_catalog
    `
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return Catalog{}, fmt.Errorf("load email catalog: %w", err)
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		if err := rows.Scan(&e.Type, &e.Description, &e.Enabled); err != nil {
			return Catalog{}, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Catalog{}, fmt.Errorf("load email catalog: %w", err)
	}

	return NewCatalog(entries...), nil
}

// AppendEvent implements EventLogRepository.
func (s *PGStorage) AppendEvent(ctx context.Context, event *EmailEvent) error {
	query := `
        INSERT INTO email_events (id, user_id, email_type, status, message_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := s.db.Exec(ctx, query,
		event.ID, event.UserID, string(event.EmailType), string(event.Status), event.MessageID, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append email event: %w", err)
	}
	return nil
}

// SentEvent implements EventLogRepository.
func (s *PGStorage) SentEvent(ctx context.Context, userID uuid.UUID, emailType EmailType) (*EmailEvent, error) {
	query := `
        SELECT id, user_id, email_type, status, message_id, created_at
        FROM email_events
        WHERE user_id = $1 AND email_type = $2 AND status = 'sent'
        ORDER BY created_at
        LIMIT 1
    `
	var e EmailEvent
	err := s.db.QueryRow(ctx, query, userID, string(emailType)).Scan(
		&e.ID, &e.UserID, &e.EmailType, &e.Status, &e.MessageID, &e.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("select sent event: %w", err)
	}
	return &e, nil
}

// HasSentEventSince implements EventLogRepository.
func (s *PGStorage) HasSentEventSince(ctx context.Context, userID uuid.UUID, emailType EmailType, since time.Time) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM email_events
            WHERE user_id = $1 AND email_type = $2 AND status = 'sent' AND created_at > $3
        )
    `
	var exists bool
	if err := s.db.QueryRow(ctx, query, userID, string(emailType), since).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recent sent event: %w", err)
	}
	return exists, nil
}

// CreateScheduled implements ScheduledEmailRepository.
func (s *PGStorage) CreateScheduled(ctx context.Context, row *ScheduledEmail) error {
	payload, err := marshalPayload(row.Payload)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO scheduled_emails (id, user_id, email_type, run_after, payload, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = s.db.Exec(ctx, query,
		row.ID, row.UserID, string(row.EmailType), row.RunAfter, payload, string(row.Status), row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert scheduled email: %w", err)
	}
	return nil
}

// CreateScheduledBatch implements ScheduledEmailRepository using a single
// round trip per chunk.
func (s *PGStorage) CreateScheduledBatch(ctx context.Context, rows []*ScheduledEmail) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
        INSERT INTO scheduled_emails (id, user_id, email_type, run_after, payload, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	for _, row := range rows {
		payload, err := marshalPayload(row.Payload)
		if err != nil {
			return err
		}
		batch.Queue(query,
			row.ID, row.UserID, string(row.EmailType), row.RunAfter, payload, string(row.Status), row.CreatedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert scheduled emails: %w", err)
		}
	}
	return nil
}

// DueScheduled implements ScheduledEmailRepository.
func (s *PGStorage) DueScheduled(ctx context.Context, now time.Time, limit int) ([]*ScheduledEmail, error) {
	query := `
        SELECT id, user_id, email_type, run_after, payload, status, picked_at, created_at
        FROM scheduled_emails
        WHERE status IN ('pending', 'requeued') AND run_after <= $1
        ORDER BY run_after, created_at
        LIMIT $2
    `
	rows, err := s.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due scheduled emails: %w", err)
	}
	defer rows.Close()

	var out []*ScheduledEmail
	for rows.Next() {
		var (
			row     ScheduledEmail
			payload []byte
		)
		if err := rows.Scan(
			&row.ID, &row.UserID, &row.EmailType, &row.RunAfter, &payload, &row.Status, &row.PickedAt, &row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scheduled email: %w", err)
		}
		if err := unmarshalPayload(payload, &row); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select due scheduled emails: %w", err)
	}
	return out, nil
}

// ClaimScheduled implements ScheduledEmailRepository. The conditional UPDATE
// is the atomic claim: exactly one concurrent invocation sees RowsAffected
// of one.
func (s *PGStorage) ClaimScheduled(ctx context.Context, id uuid.UUID, pickedAt time.Time) (bool, error) {
	query := `
        UPDATE scheduled_emails
        SET status = 'claimed', picked_at = $2
        WHERE id = $1 AND status IN ('pending', 'requeued')
    `
	tag, err := s.db.Exec(ctx, query, id, pickedAt)
	if err != nil {
		return false, fmt.Errorf("claim scheduled email: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkScheduled implements ScheduledEmailRepository. Only claimed rows may
// move on, which the WHERE clause enforces atomically.
func (s *PGStorage) MarkScheduled(ctx context.Context, id uuid.UUID, status ScheduleStatus) error {
	if !CanTransition(ScheduleClaimed, status) {
		return fmt.Errorf("%w: claimed -> %s", ErrInvalidStatusTransition, status)
	}

	query := `
        UPDATE scheduled_emails
        SET status = $2,
            picked_at = CASE WHEN $2 = 'requeued' THEN NULL ELSE picked_at END
        WHERE id = $1 AND status = 'claimed'
    `
	tag, err := s.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("mark scheduled email %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: row %s is not claimed", ErrInvalidStatusTransition, id)
	}
	return nil
}

// ScheduledUserIDs implements ScheduledEmailRepository.
func (s *PGStorage) ScheduledUserIDs(ctx context.Context, emailType EmailType, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if len(userIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	query := `
        SELECT DISTINCT user_id
        FROM scheduled_emails
        WHERE email_type = $1 AND user_id = ANY($2::uuid[])
    `
	rows, err := s.db.Query(ctx, query, string(emailType), ids)
	if err != nil {
		return nil, fmt.Errorf("select scheduled user ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scheduled user id: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select scheduled user ids: %w", err)
	}
	return out, nil
}

// TouchActivity implements ActivityRepository. GREATEST keeps the stored
// timestamp monotonic under out-of-order writes.
func (s *PGStorage) TouchActivity(ctx context.Context, userID uuid.UUID, seenAt time.Time) error {
	query := `
        INSERT INTO user_activity (user_id, last_seen_at)
        VALUES ($1, $2)
        ON CONFLICT (user_id)
        DO UPDATE SET last_seen_at = GREATEST(user_activity.last_seen_at, EXCLUDED.last_seen_at)
    `
	if _, err := s.db.Exec(ctx, query, userID, seenAt); err != nil {
		return fmt.Errorf("touch user activity: %w", err)
	}
	return nil
}

// InactiveSince implements ActivityRepository.
func (s *PGStorage) InactiveSince(ctx context.Context, cutoff time.Time) ([]UserActivity, error) {
	query := `
        SELECT user_id, last_seen_at
        FROM user_activity
        WHERE last_seen_at < $1
        ORDER BY last_seen_at
    `
	rows, err := s.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select inactive users: %w", err)
	}
	defer rows.Close()

	var out []UserActivity
	for rows.Next() {
		var ua UserActivity
		if err := rows.Scan(&ua.UserID, &ua.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan user activity: %w", err)
		}
		out = append(out, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select inactive users: %w", err)
	}
	return out, nil
}

// ProfileByID implements ProfileRepository.
func (s *PGStorage) ProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `
        SELECT id, email, first_name, created_at
        FROM profiles
        WHERE id = $1
    `
	var p Profile
	err := s.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Email, &p.FirstName, &p.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}

// ProfilesCreatedBefore implements ProfileRepository.
func (s *PGStorage) ProfilesCreatedBefore(ctx context.Context, cutoff time.Time) ([]Profile, error) {
	query := `
        SELECT id, email, first_name, created_at
        FROM profiles
        WHERE created_at < $1
        ORDER BY created_at
    `
	rows, err := s.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("select profiles before cutoff: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FirstName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select profiles before cutoff: %w", err)
	}
	return out, nil
}

func marshalPayload(payload map[string]string) ([]byte, error) {
	if payload == nil {
		payload = map[string]string{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal scheduled email payload: %w", err)
	}
	return data, nil
}

func unmarshalPayload(data []byte, row *ScheduledEmail) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &row.Payload); err != nil {
		return fmt.Errorf("unmarshal scheduled email payload: %w", err)
	}
	return nil
}
