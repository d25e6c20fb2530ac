package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/porchlist/mailroom/pkg/email"
	"github.com/porchlist/mailroom/pkg/email/templates"
)

// Renderer maps an email type tag and payload to rendered content.
// The default is templates.Render; tests may substitute their own.
type Renderer func(emailType string, data map[string]string) (templates.Content, error)

// Orchestrator composes the event log, the scheduled email queue, activity
// tracking, and the delivery client into the outbound email operations:
// immediate idempotent sends, deferred scheduling, the two cron-driven
// processors, and the backfill batch job.
type Orchestrator struct {
	events    EventLogRepository
	scheduled ScheduledEmailRepository
	activity  ActivityRepository
	profiles  ProfileRepository
	sender    email.Sender
	catalog   Catalog
	render    Renderer
	log       *slog.Logger
	now       func() time.Time
	cfg       Config
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides tuning knobs; zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger. Nil loggers are ignored.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithClock substitutes the time source, letting tests control due-date and
// threshold arithmetic.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRenderer substitutes the template renderer.
func WithRenderer(r Renderer) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.render = r
		}
	}
}

// New creates an orchestrator over the given storage ports, delivery client,
// and catalog.
func New(repos Repositories, sender email.Sender, catalog Catalog, opts ...Option) (*Orchestrator, error) {
	if err := repos.Validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrSenderNil
	}

	o := &Orchestrator{
		events:    repos.Events,
		scheduled: repos.Scheduled,
		activity:  repos.Activity,
		profiles:  repos.Profiles,
		sender:    sender,
		catalog:   catalog,
		render: func(emailType string, data map[string]string) (templates.Content, error) {
			return templates.Render(emailType, data)
		},
		log: slog.Default(),
		now: time.Now,
		cfg: defaultConfig(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// SendEmail renders and dispatches one email to the user immediately,
// appending the outcome to the event log.
//
// For one-time types a prior "sent" event short-circuits the call: the prior
// event is returned untouched and neither the renderer nor the delivery
// client runs. This keeps welcome-style emails single-shot under retries and
// overlapping cron runs.
//
// Delivery failure appends a "failed" event and returns an error; the caller
// always observes the failure.
func (o *Orchestrator) SendEmail(ctx context.Context, userID uuid.UUID, to string, emailType EmailType, payload map[string]string) (*EmailEvent, error) {
	if err := o.catalog.Allow(emailType); err != nil {
		return nil, err
	}
	if !email.IsValidAddress(to) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRecipient, to)
	}

	if emailType.OneTime() {
		prior, err := o.events.SentEvent(ctx, userID, emailType)
		if err == nil {
			o.log.DebugContext(ctx, "duplicate send short-circuited",
				"user_id", userID, "email_type", emailType, "prior_event_id", prior.ID)
			return prior, nil
		}
		if !errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("idempotency lookup for %s/%s: %w", userID, emailType, err)
		}
	}

	content, err := o.render(string(emailType), payload)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", emailType, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
	defer cancel()

	messageID, sendErr := o.sender.Send(sendCtx, email.SendParams{
		SendTo:   to,
		Subject:  content.Subject,
		BodyHTML: content.HTML,
		BodyText: content.Text,
		Tag:      string(emailType),
	})

	event := &EmailEvent{
		ID:        uuid.New(),
		UserID:    userID,
		EmailType: emailType,
		CreatedAt: o.now(),
	}

	if sendErr != nil {
		event.Status = EventFailed
		if appendErr := o.events.AppendEvent(ctx, event); appendErr != nil {
			o.log.ErrorContext(ctx, "failed to record failed email event",
				"user_id", userID, "email_type", emailType, "error", appendErr)
		}
		return event, fmt.Errorf("send %s to user %s: %w", emailType, userID, sendErr)
	}

	event.Status = EventSent
	event.MessageID = &messageID
	if err := o.events.AppendEvent(ctx, event); err != nil {
		// The email went out; surface the bookkeeping failure to the caller.
		return event, fmt.Errorf("record sent event for %s/%s: %w", userID, emailType, err)
	}

	o.log.InfoContext(ctx, "email sent",
		"user_id", userID, "email_type", emailType, "message_id", messageID)
	return event, nil
}

// ScheduleEmail inserts one pending deferred send. Duplicate scheduling is
// tolerated here; at-most-once semantics are enforced at send time.
func (o *Orchestrator) ScheduleEmail(ctx context.Context, userID uuid.UUID, emailType EmailType, runAfter time.Time, payload map[string]string) (*ScheduledEmail, error) {
	if err := o.catalog.Allow(emailType); err != nil {
		return nil, err
	}

	row := &ScheduledEmail{
		ID:        uuid.New(),
		UserID:    userID,
		EmailType: emailType,
		RunAfter:  runAfter,
		Payload:   payload,
		Status:    SchedulePending,
		CreatedAt: o.now(),
	}

	if err := o.scheduled.CreateScheduled(ctx, row); err != nil {
		return nil, fmt.Errorf("schedule %s for user %s: %w", emailType, userID, err)
	}

	o.log.DebugContext(ctx, "email scheduled",
		"user_id", userID, "email_type", emailType, "run_after", runAfter)
	return row, nil
}

// ScheduleMeetingReminder schedules a meeting_reminder email to fire
// ReminderOffset before the meeting.
//
// When the computed run time is already in the past but the meeting is still
// ahead, the reminder is clamped to now so the next batch run picks it up.
// When the meeting itself has already started, scheduling is refused with
// ErrReminderWindowPassed.
func (o *Orchestrator) ScheduleMeetingReminder(ctx context.Context, meetingID, recipientID uuid.UUID, meetingAt time.Time) (*ScheduledEmail, error) {
	now := o.now()
	if !meetingAt.After(now) {
		return nil, fmt.Errorf("%w: meeting %s at %s", ErrReminderWindowPassed, meetingID, meetingAt.Format(time.RFC3339))
	}

	runAfter := meetingAt.Add(-o.cfg.ReminderOffset)
	if runAfter.Before(now) {
		runAfter = now
	}

	payload := map[string]string{
		"meeting_id":   meetingID.String(),
		"meeting_time": meetingAt.Format("2006-01-02 15:04"),
	}

	return o.ScheduleEmail(ctx, recipientID, TypeMeetingReminder, runAfter, payload)
}

// RecordUserActivity upserts the user's last-seen timestamp to now. Called
// from arbitrary request paths; the stored value never moves backward.
func (o *Orchestrator) RecordUserActivity(ctx context.Context, userID uuid.UUID) error {
	if err := o.activity.TouchActivity(ctx, userID, o.now()); err != nil {
		return fmt.Errorf("record activity for user %s: %w", userID, err)
	}
	return nil
}
