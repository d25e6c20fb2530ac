package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// EmailType tags a category of outbound email. Every type must be present
// and enabled in the catalog before it can be sent or scheduled.
type EmailType string

const (
	TypeWelcome               EmailType = "welcome"
	TypeCommunityGrowthDay135 EmailType = "community_growth_day135"
	TypeReengagement          EmailType = "re_engagement"
	TypeMeetingReminder       EmailType = "meeting_reminder"
)

// oneTimeTypes are sent at most once per user, ever. The event log is the
// source of truth: a prior "sent" event short-circuits any later attempt.
var oneTimeTypes = map[EmailType]bool{
	TypeWelcome:               true,
	TypeCommunityGrowthDay135: true,
}

// OneTime reports whether the type is an at-most-once-ever send.
func (t EmailType) OneTime() bool {
	return oneTimeTypes[t]
}

// EventStatus is the recorded outcome of one dispatch attempt.
type EventStatus string

const (
	EventSent    EventStatus = "sent"
	EventFailed  EventStatus = "failed"
	EventSkipped EventStatus = "skipped"
)

// EmailEvent is one append-only row in the email event log. Rows are never
// mutated or deleted; the log doubles as the audit trail and the idempotency
// source of truth.
type EmailEvent struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	EmailType EmailType   `json:"email_type"`
	Status    EventStatus `json:"status"`
	MessageID *string     `json:"message_id,omitempty"` // provider message id, present on sent events
	CreatedAt time.Time   `json:"created_at"`
}

// ScheduleStatus is the lifecycle state of a scheduled email row.
// Transitions are defined in status.go and validated before storage writes.
type ScheduleStatus string

const (
	SchedulePending  ScheduleStatus = "pending"
	ScheduleClaimed  ScheduleStatus = "claimed"
	ScheduleSent     ScheduleStatus = "sent"
	ScheduleFailed   ScheduleStatus = "failed"
	ScheduleRequeued ScheduleStatus = "requeued"
)

// ScheduledEmail is one pending deferred send. A row is due when
// RunAfter <= now and its status is pending or requeued.
type ScheduledEmail struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	EmailType EmailType         `json:"email_type"`
	RunAfter  time.Time         `json:"run_after"`
	Payload   map[string]string `json:"payload,omitempty"` // merged into template rendering
	Status    ScheduleStatus    `json:"status"`
	PickedAt  *time.Time        `json:"picked_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// UserActivity is the last-seen timestamp for one user. The timestamp is
// monotonically non-decreasing.
type UserActivity struct {
	UserID     uuid.UUID `json:"user_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Profile is the slice of a member profile the mailroom needs: where to
// deliver, how to address them, and when they signed up.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	CreatedAt time.Time `json:"created_at"`
}
