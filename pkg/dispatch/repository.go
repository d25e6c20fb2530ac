package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventLogRepository is the port for the append-only email event log.
type EventLogRepository interface {
	// AppendEvent writes one event row. Rows are never updated afterwards.
	AppendEvent(ctx context.Context, event *EmailEvent) error

	// SentEvent returns the earliest "sent" event for (user, type), or
	// ErrEventNotFound when none exists.
	SentEvent(ctx context.Context, userID uuid.UUID, emailType EmailType) (*EmailEvent, error)

	// HasSentEventSince reports whether a "sent" event for (user, type)
	// exists with a created timestamp after since.
	HasSentEventSince(ctx context.Context, userID uuid.UUID, emailType EmailType, since time.Time) (bool, error)
}

// ScheduledEmailRepository is the port for the deferred-send queue.
type ScheduledEmailRepository interface {
	CreateScheduled(ctx context.Context, row *ScheduledEmail) error

	// CreateScheduledBatch inserts all rows or fails the whole batch.
	CreateScheduledBatch(ctx context.Context, rows []*ScheduledEmail) error

	// DueScheduled returns rows with run_after <= now in pending or requeued
	// status, oldest due first, capped at limit.
	DueScheduled(ctx context.Context, now time.Time, limit int) ([]*ScheduledEmail, error)

	// ClaimScheduled atomically moves a row from pending/requeued to claimed.
	// It reports false when the row was already claimed or finished by a
	// concurrent run; only the invocation that got true may dispatch it.
	ClaimScheduled(ctx context.Context, id uuid.UUID, pickedAt time.Time) (bool, error)

	// MarkScheduled transitions a claimed row to sent, failed, or requeued.
	MarkScheduled(ctx context.Context, id uuid.UUID, status ScheduleStatus) error

	// ScheduledUserIDs returns, out of userIDs, the set of users that already
	// have a scheduled row of the given type.
	ScheduledUserIDs(ctx context.Context, emailType EmailType, userIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// ActivityRepository is the port for per-user last-seen tracking.
type ActivityRepository interface {
	// TouchActivity upserts the user's last-seen timestamp. The stored value
	// never moves backward, so out-of-order touches are safe.
	TouchActivity(ctx context.Context, userID uuid.UUID, seenAt time.Time) error

	// InactiveSince returns users whose last activity is strictly before cutoff.
	InactiveSince(ctx context.Context, cutoff time.Time) ([]UserActivity, error)
}

// ProfileRepository resolves member profiles. The profiles themselves are
// owned by the marketplace application; the mailroom only reads them.
type ProfileRepository interface {
	// ProfileByID returns the profile or ErrProfileNotFound.
	ProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error)

	// ProfilesCreatedBefore returns profiles with a signup time strictly
	// before cutoff.
	ProfilesCreatedBefore(ctx context.Context, cutoff time.Time) ([]Profile, error)
}

// Repositories bundles the storage ports the orchestrator depends on.
type Repositories struct {
	Events    EventLogRepository
	Scheduled ScheduledEmailRepository
	Activity  ActivityRepository
	Profiles  ProfileRepository
}

// Validate reports the first missing port.
func (r Repositories) Validate() error {
	if r.Events == nil || r.Scheduled == nil || r.Activity == nil || r.Profiles == nil {
		return ErrRepositoryNil
	}
	return nil
}
