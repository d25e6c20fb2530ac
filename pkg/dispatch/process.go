package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RowError describes one scheduled email row that could not be completed
// during a batch run.
type RowError struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	UserID     uuid.UUID `json:"user_id"`
	Reason     string    `json:"reason"`
}

// ProcessReport summarizes one scheduled-email batch run.
type ProcessReport struct {
	Processed int        `json:"processed"`
	Errors    []RowError `json:"errors,omitempty"`
}

// ReengageReport summarizes one re-engagement scan. Skipped is the sum of
// Throttled (recently re-engaged) and Failed (profile lookup or delivery
// failure); the split is kept so the two causes stay distinguishable.
type ReengageReport struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Throttled int `json:"throttled"`
	Failed    int `json:"failed"`
}

// ProcessScheduledEmails drains due scheduled email rows: oldest due first,
// capped at the batch limit. Each row is atomically claimed before dispatch,
// so overlapping runs never double-send.
//
// One bad row never aborts the batch. A missing profile marks the row failed
// (terminal); a delivery failure requeues it for the next cycle. Both are
// reported per row in the returned report.
func (o *Orchestrator) ProcessScheduledEmails(ctx context.Context) (*ProcessReport, error) {
	report := &ProcessReport{}

	due, err := o.scheduled.DueScheduled(ctx, o.now(), o.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("select due scheduled emails: %w", err)
	}

	for _, row := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		claimed, err := o.scheduled.ClaimScheduled(ctx, row.ID, o.now())
		if err != nil {
			report.Errors = append(report.Errors, rowError(row, "claim: "+err.Error()))
			continue
		}
		if !claimed {
			// A concurrent run won the claim; nothing to do here.
			continue
		}

		profile, err := o.profiles.ProfileByID(ctx, row.UserID)
		if err != nil {
			o.markScheduled(ctx, row.ID, ScheduleFailed)
			report.Errors = append(report.Errors, rowError(row, "resolve profile: "+err.Error()))
			continue
		}

		payload := mergeProfilePayload(row.Payload, profile)
		if _, err := o.SendEmail(ctx, row.UserID, profile.Email, row.EmailType, payload); err != nil {
			o.markScheduled(ctx, row.ID, ScheduleRequeued)
			report.Errors = append(report.Errors, rowError(row, "dispatch: "+err.Error()))
			continue
		}

		o.markScheduled(ctx, row.ID, ScheduleSent)
		report.Processed++
	}

	o.log.InfoContext(ctx, "scheduled emails processed",
		"due", len(due), "processed", report.Processed, "errors", len(report.Errors))
	return report, nil
}

// ProcessReengageEmails scans for users inactive beyond the threshold and
// sends each a re-engagement email, unless one was already sent within the
// throttle window.
//
// Unlike welcome emails, re-engagement repeats: the idempotency policy is a
// sliding window, not at-most-once-ever. Users are de-duplicated within the
// batch regardless of what the underlying query returns.
func (o *Orchestrator) ProcessReengageEmails(ctx context.Context) (*ReengageReport, error) {
	report := &ReengageReport{}
	now := o.now()

	inactive, err := o.activity.InactiveSince(ctx, now.Add(-o.cfg.InactivityThreshold))
	if err != nil {
		return nil, fmt.Errorf("select inactive users: %w", err)
	}

	windowStart := now.Add(-o.cfg.ReengageWindow)
	seen := make(map[uuid.UUID]struct{}, len(inactive))

	for _, ua := range inactive {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if _, dup := seen[ua.UserID]; dup {
			continue
		}
		seen[ua.UserID] = struct{}{}
		report.Processed++

		recent, err := o.events.HasSentEventSince(ctx, ua.UserID, TypeReengagement, windowStart)
		if err != nil {
			report.Skipped++
			report.Failed++
			o.log.ErrorContext(ctx, "re-engagement throttle lookup failed",
				"user_id", ua.UserID, "error", err)
			continue
		}
		if recent {
			report.Skipped++
			report.Throttled++
			o.appendSkippedEvent(ctx, ua.UserID, TypeReengagement)
			continue
		}

		profile, err := o.profiles.ProfileByID(ctx, ua.UserID)
		if err != nil {
			report.Skipped++
			report.Failed++
			o.log.ErrorContext(ctx, "re-engagement profile lookup failed",
				"user_id", ua.UserID, "error", err)
			continue
		}

		payload := map[string]string{"first_name": profile.FirstName}
		if _, err := o.SendEmail(ctx, ua.UserID, profile.Email, TypeReengagement, payload); err != nil {
			report.Skipped++
			report.Failed++
			continue
		}
		report.Sent++
	}

	o.log.InfoContext(ctx, "re-engagement scan finished",
		"processed", report.Processed, "sent", report.Sent,
		"throttled", report.Throttled, "failed", report.Failed)
	return report, nil
}

// markScheduled applies a status transition, logging instead of failing the
// batch when the write itself errors.
func (o *Orchestrator) markScheduled(ctx context.Context, id uuid.UUID, status ScheduleStatus) {
	if err := o.scheduled.MarkScheduled(ctx, id, status); err != nil {
		o.log.ErrorContext(ctx, "failed to update scheduled email status",
			"schedule_id", id, "status", status, "error", err)
	}
}

// appendSkippedEvent records a skipped dispatch decision for the audit trail.
func (o *Orchestrator) appendSkippedEvent(ctx context.Context, userID uuid.UUID, emailType EmailType) {
	event := &EmailEvent{
		ID:        uuid.New(),
		UserID:    userID,
		EmailType: emailType,
		Status:    EventSkipped,
		CreatedAt: o.now(),
	}
	if err := o.events.AppendEvent(ctx, event); err != nil {
		o.log.ErrorContext(ctx, "failed to record skipped email event",
			"user_id", userID, "email_type", emailType, "error", err)
	}
}

// mergeProfilePayload overlays profile fields under the row payload; explicit
// payload keys win.
func mergeProfilePayload(payload map[string]string, profile *Profile) map[string]string {
	merged := make(map[string]string, len(payload)+1)
	if profile.FirstName != "" {
		merged["first_name"] = profile.FirstName
	}
	for k, v := range payload {
		merged[k] = v
	}
	return merged
}

func rowError(row *ScheduledEmail, reason string) RowError {
	return RowError{ScheduleID: row.ID, UserID: row.UserID, Reason: reason}
}
