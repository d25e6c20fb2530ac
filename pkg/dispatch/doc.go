// Package dispatch orchestrates Porchlist's outbound member email.
//
// The package composes four storage ports (append-only event log, scheduled
// email queue, user activity tracking, member profiles) with a delivery
// client into a single Orchestrator exposing the outbound operations:
//
//   - SendEmail: immediate dispatch with at-most-once-ever semantics for
//     one-time types, enforced through the event log.
//   - ScheduleEmail and ScheduleMeetingReminder: deferred sends.
//   - ProcessScheduledEmails: cron-driven drain of due rows with atomic
//     per-row claiming, safe under overlapping runs.
//   - ProcessReengageEmails: activity-based nudges with a sliding throttle
//     window instead of a permanent idempotency key.
//   - Backfill: retroactive scheduling for pre-existing users, idempotent
//     via set-difference against already scheduled rows.
//
// Every operation is gated by the email type catalog, which production
// loads from the database and tests construct in memory. The package ships
// two storage implementations: PGStorage over pgx for production and
// MemoryStorage for tests and local development.
//
// Usage:
//
//	storage := dispatch.NewMemoryStorage()
//	orch, err := dispatch.New(dispatch.Repositories{
//		Events:    storage,
//		Scheduled: storage,
//		Activity:  storage,
//		Profiles:  storage,
//	}, sender, dispatch.DefaultCatalog())
//	if err != nil {
//		return err
//	}
//
//	event, err := orch.SendEmail(ctx, userID, "member@example.com",
//		dispatch.TypeWelcome, map[string]string{"first_name": "Ada"})
package dispatch
