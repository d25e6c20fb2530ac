package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchlist/mailroom/pkg/dispatch"
)

func newScheduledRow(runAfter, createdAt time.Time) *dispatch.ScheduledEmail {
	return &dispatch.ScheduledEmail{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		EmailType: dispatch.TypeMeetingReminder,
		RunAfter:  runAfter,
		Status:    dispatch.SchedulePending,
		CreatedAt: createdAt,
	}
}

func TestMemoryStorage_ClaimScheduled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("exactly one concurrent claim wins", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		const workers = 16
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := storage.ClaimScheduled(ctx, row.ID, now)
				assert.NoError(t, err)
				if claimed {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("requeued rows can be claimed again", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		claimed, err := storage.ClaimScheduled(ctx, row.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleRequeued))

		claimed, err = storage.ClaimScheduled(ctx, row.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("terminal rows cannot be claimed", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		claimed, err := storage.ClaimScheduled(ctx, row.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleSent))

		claimed, err = storage.ClaimScheduled(ctx, row.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("unknown row", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		_, err := storage.ClaimScheduled(ctx, uuid.New(), now)
		require.ErrorIs(t, err, dispatch.ErrScheduleNotFound)
	})
}

func TestMemoryStorage_MarkScheduled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("rejects transitions that skip the claim", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		err := storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleSent)
		require.ErrorIs(t, err, dispatch.ErrInvalidStatusTransition)
	})

	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		claimed, err := storage.ClaimScheduled(ctx, row.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleFailed))

		err = storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleRequeued)
		require.ErrorIs(t, err, dispatch.ErrInvalidStatusTransition)
	})

	t.Run("requeue clears the pick timestamp", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		row := newScheduledRow(now, now)
		require.NoError(t, storage.CreateScheduled(ctx, row))

		claimed, err := storage.ClaimScheduled(ctx, row.ID, now)
		require.NoError(t, err)
		require.True(t, claimed)
		require.NoError(t, storage.MarkScheduled(ctx, row.ID, dispatch.ScheduleRequeued))

		stored, ok := storage.ScheduledByID(row.ID)
		require.True(t, ok)
		assert.Equal(t, dispatch.ScheduleRequeued, stored.Status)
		assert.Nil(t, stored.PickedAt)
	})
}

func TestMemoryStorage_DueScheduled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	storage := dispatch.NewMemoryStorage()
	late := newScheduledRow(now.Add(-time.Minute), now)
	early := newScheduledRow(now.Add(-time.Hour), now)
	future := newScheduledRow(now.Add(time.Minute), now)
	for _, row := range []*dispatch.ScheduledEmail{late, early, future} {
		require.NoError(t, storage.CreateScheduled(ctx, row))
	}

	due, err := storage.DueScheduled(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID, "oldest due first")
	assert.Equal(t, late.ID, due[1].ID)

	due, err = storage.DueScheduled(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
}

func TestMemoryStorage_TouchActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	storage := dispatch.NewMemoryStorage()
	require.NoError(t, storage.TouchActivity(ctx, userID, base))
	require.NoError(t, storage.TouchActivity(ctx, userID, base.Add(-time.Hour)))

	got, ok := storage.LastSeenAt(userID)
	require.True(t, ok)
	assert.True(t, got.Equal(base), "stale touches never move the timestamp back")

	require.NoError(t, storage.TouchActivity(ctx, userID, base.Add(time.Hour)))
	got, _ = storage.LastSeenAt(userID)
	assert.True(t, got.Equal(base.Add(time.Hour)))
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to dispatch.ScheduleStatus }{
		{dispatch.SchedulePending, dispatch.ScheduleClaimed},
		{dispatch.ScheduleRequeued, dispatch.ScheduleClaimed},
		{dispatch.ScheduleClaimed, dispatch.ScheduleSent},
		{dispatch.ScheduleClaimed, dispatch.ScheduleFailed},
		{dispatch.ScheduleClaimed, dispatch.ScheduleRequeued},
	}
	for _, tc := range allowed {
		assert.True(t, dispatch.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to dispatch.ScheduleStatus }{
		{dispatch.SchedulePending, dispatch.ScheduleSent},
		{dispatch.SchedulePending, dispatch.ScheduleFailed},
		{dispatch.ScheduleSent, dispatch.ScheduleClaimed},
		{dispatch.ScheduleFailed, dispatch.ScheduleClaimed},
		{dispatch.ScheduleSent, dispatch.ScheduleRequeued},
		{dispatch.ScheduleClaimed, dispatch.ScheduleClaimed},
	}
	for _, tc := range denied {
		assert.False(t, dispatch.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
