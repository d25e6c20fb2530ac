package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porchlist/mailroom/pkg/dispatch"
	"github.com/porchlist/mailroom/pkg/email"
)

// mockSender records every delivery attempt and can be told to fail.
type mockSender struct {
	mu    sync.Mutex
	calls []email.SendParams
	err   error
}

func (m *mockSender) Send(ctx context.Context, params email.SendParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("msg-%d", len(m.calls)), nil
}

func (m *mockSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestOrchestrator(t *testing.T, storage *dispatch.MemoryStorage, sender email.Sender, opts ...dispatch.Option) *dispatch.Orchestrator {
	t.Helper()

	orch, err := dispatch.New(dispatch.Repositories{
		Events:    storage,
		Scheduled: storage,
		Activity:  storage,
		Profiles:  storage,
	}, sender, dispatch.DefaultCatalog(), opts...)
	require.NoError(t, err)
	return orch
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("missing repository", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		_, err := dispatch.New(dispatch.Repositories{
			Events:    storage,
			Scheduled: storage,
			Activity:  storage,
		}, &mockSender{}, dispatch.DefaultCatalog())
		require.ErrorIs(t, err, dispatch.ErrRepositoryNil)
	})

	t.Run("missing sender", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		_, err := dispatch.New(dispatch.Repositories{
			Events:    storage,
			Scheduled: storage,
			Activity:  storage,
			Profiles:  storage,
		}, nil, dispatch.DefaultCatalog())
		require.ErrorIs(t, err, dispatch.ErrSenderNil)
	})
}

func TestOrchestrator_SendEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	t.Run("sends and records event", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		orch := newTestOrchestrator(t, storage, sender)

		event, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome,
			map[string]string{"first_name": "Ada"})
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, dispatch.EventSent, event.Status)
		require.NotNil(t, event.MessageID)
		assert.Equal(t, "msg-1", *event.MessageID)

		require.Equal(t, 1, sender.callCount())
		assert.Equal(t, "ada@example.com", sender.calls[0].SendTo)
		assert.Equal(t, string(dispatch.TypeWelcome), sender.calls[0].Tag)
		assert.Contains(t, sender.calls[0].BodyHTML, "Ada")

		events := storage.AllEvents()
		require.Len(t, events, 1)
		assert.Equal(t, dispatch.EventSent, events[0].Status)
	})

	t.Run("one-time type is sent at most once", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		orch := newTestOrchestrator(t, storage, sender)

		first, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome, nil)
		require.NoError(t, err)

		second, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome, nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID, "second call must return the prior event")
		assert.Equal(t, 1, sender.callCount(), "delivery client must run exactly once")
		assert.Len(t, storage.AllEvents(), 1)
	})

	t.Run("failed attempt does not block a retry of a one-time type", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{err: errors.New("postmark unavailable")}
		orch := newTestOrchestrator(t, storage, sender)

		event, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome, nil)
		require.Error(t, err)
		require.NotNil(t, event)
		assert.Equal(t, dispatch.EventFailed, event.Status)
		assert.Nil(t, event.MessageID)

		// Only "sent" events are idempotency keys; a retry goes through.
		sender.err = nil
		retried, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome, nil)
		require.NoError(t, err)
		assert.Equal(t, dispatch.EventSent, retried.Status)
		assert.Equal(t, 2, sender.callCount())
	})

	t.Run("repeatable type sends every time", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		orch := newTestOrchestrator(t, storage, sender)

		_, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeReengagement, nil)
		require.NoError(t, err)
		_, err = orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeReengagement, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, sender.callCount())
	})

	t.Run("type missing from catalog", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		orch := newTestOrchestrator(t, storage, sender)

		_, err := orch.SendEmail(ctx, userID, "ada@example.com", dispatch.EmailType("product_update"), nil)
		require.ErrorIs(t, err, dispatch.ErrTypeNotInCatalog)
		assert.Zero(t, sender.callCount())
		assert.Empty(t, storage.AllEvents(), "rejected sends leave no event")
	})

	t.Run("disabled type", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		catalog := dispatch.NewCatalog(
			dispatch.CatalogEntry{Type: dispatch.TypeWelcome, Enabled: false},
		)
		orch, err := dispatch.New(dispatch.Repositories{
			Events:    storage,
			Scheduled: storage,
			Activity:  storage,
			Profiles:  storage,
		}, sender, catalog)
		require.NoError(t, err)

		_, err = orch.SendEmail(ctx, userID, "ada@example.com", dispatch.TypeWelcome, nil)
		require.ErrorIs(t, err, dispatch.ErrTypeDisabled)
		assert.Zero(t, sender.callCount())
	})

	t.Run("invalid recipient", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		sender := &mockSender{}
		orch := newTestOrchestrator(t, storage, sender)

		_, err := orch.SendEmail(ctx, userID, "not-an-address", dispatch.TypeWelcome, nil)
		require.ErrorIs(t, err, dispatch.ErrInvalidRecipient)
		assert.Zero(t, sender.callCount())
	})
}

func TestOrchestrator_ScheduleEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("creates pending row", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newTestOrchestrator(t, storage, &mockSender{},
			dispatch.WithClock(func() time.Time { return now }))

		runAfter := now.Add(48 * time.Hour)
		row, err := orch.ScheduleEmail(ctx, userID, dispatch.TypeCommunityGrowthDay135, runAfter,
			map[string]string{"first_name": "Ada"})
		require.NoError(t, err)
		assert.Equal(t, dispatch.SchedulePending, row.Status)
		assert.True(t, row.RunAfter.Equal(runAfter))

		stored, ok := storage.ScheduledByID(row.ID)
		require.True(t, ok)
		assert.Equal(t, "Ada", stored.Payload["first_name"])
	})

	t.Run("catalog gate applies to scheduling too", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newTestOrchestrator(t, storage, &mockSender{})

		_, err := orch.ScheduleEmail(ctx, userID, dispatch.EmailType("digest"), now, nil)
		require.ErrorIs(t, err, dispatch.ErrTypeNotInCatalog)
		assert.Zero(t, storage.ScheduledCount(dispatch.EmailType("digest")))
	})
}

func TestOrchestrator_ScheduleMeetingReminder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	recipientID := uuid.New()
	meetingID := uuid.New()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	newOrch := func(t *testing.T, storage *dispatch.MemoryStorage) *dispatch.Orchestrator {
		return newTestOrchestrator(t, storage, &mockSender{},
			dispatch.WithClock(func() time.Time { return now }))
	}

	t.Run("schedules offset before the meeting", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newOrch(t, storage)

		meetingAt := now.Add(72 * time.Hour)
		row, err := orch.ScheduleMeetingReminder(ctx, meetingID, recipientID, meetingAt)
		require.NoError(t, err)
		assert.True(t, row.RunAfter.Equal(meetingAt.Add(-24*time.Hour)))
		assert.Equal(t, meetingID.String(), row.Payload["meeting_id"])
		assert.Equal(t, meetingAt.Format("2006-01-02 15:04"), row.Payload["meeting_time"])
	})

	t.Run("clamps to now when the reminder window already opened", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newOrch(t, storage)

		// 6 hours ahead: 24h before the meeting is already in the past.
		row, err := orch.ScheduleMeetingReminder(ctx, meetingID, recipientID, now.Add(6*time.Hour))
		require.NoError(t, err)
		assert.True(t, row.RunAfter.Equal(now), "reminder must be due immediately")
	})

	t.Run("refuses a meeting that already started", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newOrch(t, storage)

		_, err := orch.ScheduleMeetingReminder(ctx, meetingID, recipientID, now.Add(-time.Minute))
		require.ErrorIs(t, err, dispatch.ErrReminderWindowPassed)
		assert.Zero(t, storage.ScheduledCount(dispatch.TypeMeetingReminder))
	})

	t.Run("refuses a meeting starting right now", func(t *testing.T) {
		t.Parallel()

		storage := dispatch.NewMemoryStorage()
		orch := newOrch(t, storage)

		_, err := orch.ScheduleMeetingReminder(ctx, meetingID, recipientID, now)
		require.ErrorIs(t, err, dispatch.ErrReminderWindowPassed)
	})
}

func TestOrchestrator_RecordUserActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()

	storage := dispatch.NewMemoryStorage()

	later := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	clock := later
	orch := newTestOrchestrator(t, storage, &mockSender{},
		dispatch.WithClock(func() time.Time { return clock }))

	require.NoError(t, orch.RecordUserActivity(ctx, userID))

	// An out-of-order touch must not move the timestamp backward.
	clock = earlier
	require.NoError(t, orch.RecordUserActivity(ctx, userID))

	got, ok := storage.LastSeenAt(userID)
	require.True(t, ok)
	assert.True(t, got.Equal(later))
}
