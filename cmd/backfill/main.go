// Command backfill retroactively schedules an email type for members who
// signed up before the type existed. The run is idempotent: users that
// already have a scheduled row of the type are skipped, so it is safe to
// rerun after a partial failure.
//
// Usage:
//
//	backfill -type community_growth_day135 -cutoff 2025-01-15 -offset-days 135 -dry-run
//
// Always start with -dry-run and sanity-check the reported counts before
// the live run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/porchlist/mailroom/pkg/config"
	"github.com/porchlist/mailroom/pkg/dispatch"
	"github.com/porchlist/mailroom/pkg/email"
	"github.com/porchlist/mailroom/pkg/logger"
	"github.com/porchlist/mailroom/pkg/pg"
)

func main() {
	var (
		typeFlag   = flag.String("type", string(dispatch.TypeCommunityGrowthDay135), "email type to backfill")
		cutoffFlag = flag.String("cutoff", "", "only users created before this date (YYYY-MM-DD, required)")
		offsetDays = flag.Int("offset-days", 135, "days after signup the email becomes due")
		dryRun     = flag.Bool("dry-run", false, "report what would be inserted without writing")
		chunkSize  = flag.Int("chunk-size", 0, "rows per insert batch (0 uses the configured default)")
	)
	flag.Parse()

	if err := run(*typeFlag, *cutoffFlag, *offsetDays, *dryRun, *chunkSize); err != nil {
		fmt.Fprintln(os.Stderr, "backfill:", err)
		os.Exit(1)
	}
}

func run(emailType, cutoffStr string, offsetDays int, dryRun bool, chunkSize int) error {
	if cutoffStr == "" {
		return fmt.Errorf("-cutoff is required")
	}
	cutoff, err := time.Parse("2006-01-02", cutoffStr)
	if err != nil {
		return fmt.Errorf("parse -cutoff: %w", err)
	}

	log := logger.New(logger.WithDevelopment("backfill"))
	ctx := context.Background()

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var dispatchCfg dispatch.Config
	config.MustLoad(&dispatchCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	storage := dispatch.NewPGStorage(pool)
	catalog, err := storage.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load email catalog: %w", err)
	}

	// The backfill only writes queue rows; sends happen later through the
	// cron service. A dev sender satisfies the constructor without ever
	// being used.
	orch, err := dispatch.New(dispatch.Repositories{
		Events:    storage,
		Scheduled: storage,
		Activity:  storage,
		Profiles:  storage,
	}, email.NewDevSender(os.TempDir()), catalog,
		dispatch.WithConfig(dispatchCfg),
		dispatch.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	report, err := orch.Backfill(ctx, dispatch.BackfillOptions{
		EmailType: dispatch.EmailType(emailType),
		Cutoff:    cutoff,
		Offset:    time.Duration(offsetDays) * 24 * time.Hour,
		DryRun:    dryRun,
		ChunkSize: chunkSize,
	})
	if err != nil {
		return err
	}

	mode := "live"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("backfill %s (%s, cutoff %s, offset %dd)\n", emailType, mode, cutoff.Format("2006-01-02"), offsetDays)
	fmt.Printf("  candidates:        %d\n", report.Candidates)
	fmt.Printf("  already scheduled: %d\n", report.AlreadyScheduled)
	fmt.Printf("  to insert:         %d (due now: %d, future: %d)\n", report.ToInsert, report.DueNow, report.Future)
	if !report.DryRun {
		fmt.Printf("  inserted:          %d\n", report.Inserted)
		if report.FailedChunks > 0 {
			fmt.Printf("  failed chunks:     %d (rerun to pick up the remainder)\n", report.FailedChunks)
		}
	}
	return nil
}
