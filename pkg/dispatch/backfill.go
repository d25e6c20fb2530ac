package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BackfillOptions configures one backfill run: retroactively scheduling an
// email type for users who signed up before the feature existed.
type BackfillOptions struct {
	EmailType EmailType
	Cutoff    time.Time     // only users created strictly before this time
	Offset    time.Duration // run_after = signup time + Offset
	DryRun    bool          // report only, zero writes
	ChunkSize int           // rows per insert batch; defaults to Config.BackfillChunkSize
}

// BackfillReport summarizes a backfill run. DueNow and Future classify the
// computed rows for the human-readable summary only; they do not affect what
// is inserted.
type BackfillReport struct {
	DryRun           bool `json:"dry_run"`
	Candidates       int  `json:"candidates"`
	AlreadyScheduled int  `json:"already_scheduled"`
	ToInsert         int  `json:"to_insert"`
	Inserted         int  `json:"inserted"`
	DueNow           int  `json:"due_now"`
	Future           int  `json:"future"`
	FailedChunks     int  `json:"failed_chunks"`
}

// Backfill enqueues the given email type for every user created before the
// cutoff who does not already have a scheduled row of that type. The
// set-difference against existing rows makes the whole job idempotent: a
// second run against an unchanged user set inserts nothing.
//
// Inserts go out in fixed-size chunks; a failed chunk is tallied and the run
// continues with the next one.
func (o *Orchestrator) Backfill(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	// Catalog rejection is a configuration error: abort before any reads.
	if err := o.catalog.Allow(opts.EmailType); err != nil {
		return nil, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = o.cfg.BackfillChunkSize
	}

	profiles, err := o.profiles.ProfilesCreatedBefore(ctx, opts.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("select users before cutoff: %w", err)
	}

	userIDs := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		userIDs[i] = p.ID
	}

	existing, err := o.scheduled.ScheduledUserIDs(ctx, opts.EmailType, userIDs)
	if err != nil {
		return nil, fmt.Errorf("select existing scheduled rows: %w", err)
	}

	report := &BackfillReport{DryRun: opts.DryRun}
	now := o.now()

	var rows []*ScheduledEmail
	for _, p := range profiles {
		report.Candidates++
		if existing[p.ID] {
			report.AlreadyScheduled++
			continue
		}

		runAfter := p.CreatedAt.Add(opts.Offset)
		if runAfter.After(now) {
			report.Future++
		} else {
			report.DueNow++
		}

		payload := map[string]string{}
		if p.FirstName != "" {
			payload["first_name"] = p.FirstName
		}

		rows = append(rows, &ScheduledEmail{
			ID:        uuid.New(),
			UserID:    p.ID,
			EmailType: opts.EmailType,
			RunAfter:  runAfter,
			Payload:   payload,
			Status:    SchedulePending,
			CreatedAt: now,
		})
	}
	report.ToInsert = len(rows)

	if opts.DryRun {
		return report, nil
	}

	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		if err := o.scheduled.CreateScheduledBatch(ctx, rows[start:end]); err != nil {
			report.FailedChunks++
			o.log.ErrorContext(ctx, "backfill chunk insert failed",
				"email_type", opts.EmailType, "chunk_start", start, "chunk_size", end-start, "error", err)
			continue
		}
		report.Inserted += end - start
	}

	o.log.InfoContext(ctx, "backfill finished",
		"email_type", opts.EmailType, "candidates", report.Candidates,
		"inserted", report.Inserted, "failed_chunks", report.FailedChunks)
	return report, nil
}
