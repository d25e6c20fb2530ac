package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all dispatch repository ports for testing and
// local development.
type MemoryStorage struct {
	mu        sync.RWMutex
	events    []*EmailEvent
	scheduled map[uuid.UUID]*ScheduledEmail
	activity  map[uuid.UUID]time.Time
	profiles  map[uuid.UUID]*Profile
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		scheduled: make(map[uuid.UUID]*ScheduledEmail),
		activity:  make(map[uuid.UUID]time.Time),
		profiles:  make(map[uuid.UUID]*Profile),
	}
}

// AddProfile seeds a member profile.
func (ms *MemoryStorage) AddProfile(p Profile) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.profiles[p.ID] = &p
}

// AppendEvent implements EventLogRepository.
func (ms *MemoryStorage) AppendEvent(ctx context.Context, event *EmailEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	eventCopy := *event
	ms.events = append(ms.events, &eventCopy)
	return nil
}

// SentEvent implements EventLogRepository.
func (ms *MemoryStorage) SentEvent(ctx context.Context, userID uuid.UUID, emailType EmailType) (*EmailEvent, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, e := range ms.events {
		if e.UserID == userID && e.EmailType == emailType && e.Status == EventSent {
			eventCopy := *e
			return &eventCopy, nil
		}
	}
	return nil, ErrEventNotFound
}

// HasSentEventSince implements EventLogRepository.
func (ms *MemoryStorage) HasSentEventSince(ctx context.Context, userID uuid.UUID, emailType EmailType, since time.Time) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, e := range ms.events {
		if e.UserID == userID && e.EmailType == emailType && e.Status == EventSent && e.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// AllEvents returns a copy of the event log in append order.
func (ms *MemoryStorage) AllEvents() []EmailEvent {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]EmailEvent, len(ms.events))
	for i, e := range ms.events {
		out[i] = *e
	}
	return out
}

// CreateScheduled implements ScheduledEmailRepository.
func (ms *MemoryStorage) CreateScheduled(ctx context.Context, row *ScheduledEmail) error {
	if row == nil {
		return errors.New("scheduled email cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.scheduled[row.ID]; exists {
		return fmt.Errorf("scheduled email %s already exists", row.ID)
	}

	rowCopy := *row
	rowCopy.Payload = maps.Clone(row.Payload)
	ms.scheduled[row.ID] = &rowCopy
	return nil
}

// CreateScheduledBatch implements ScheduledEmailRepository.
func (ms *MemoryStorage) CreateScheduledBatch(ctx context.Context, rows []*ScheduledEmail) error {
	for _, row := range rows {
		if err := ms.CreateScheduled(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// DueScheduled implements ScheduledEmailRepository.
func (ms *MemoryStorage) DueScheduled(ctx context.Context, now time.Time, limit int) ([]*ScheduledEmail, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []*ScheduledEmail
	for _, row := range ms.scheduled {
		if row.Status != SchedulePending && row.Status != ScheduleRequeued {
			continue
		}
		if row.RunAfter.After(now) {
			continue
		}
		rowCopy := *row
		rowCopy.Payload = maps.Clone(row.Payload)
		due = append(due, &rowCopy)
	}

	// Oldest due first; creation time breaks ties for fairness.
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RunAfter.Equal(due[j].RunAfter) {
			return due[i].RunAfter.Before(due[j].RunAfter)
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ClaimScheduled implements ScheduledEmailRepository. The compare-and-set
// under the lock mirrors the conditional UPDATE the postgres storage uses.
func (ms *MemoryStorage) ClaimScheduled(ctx context.Context, id uuid.UUID, pickedAt time.Time) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	row, exists := ms.scheduled[id]
	if !exists {
		return false, ErrScheduleNotFound
	}

	if !CanTransition(row.Status, ScheduleClaimed) {
		return false, nil
	}

	row.Status = ScheduleClaimed
	row.PickedAt = &pickedAt
	return true, nil
}

// MarkScheduled implements ScheduledEmailRepository.
func (ms *MemoryStorage) MarkScheduled(ctx context.Context, id uuid.UUID, status ScheduleStatus) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	row, exists := ms.scheduled[id]
	if !exists {
		return ErrScheduleNotFound
	}

	if !CanTransition(row.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, row.Status, status)
	}

	row.Status = status
	if status == ScheduleRequeued {
		row.PickedAt = nil
	}
	return nil
}

// ScheduledUserIDs implements ScheduledEmailRepository.
func (ms *MemoryStorage) ScheduledUserIDs(ctx context.Context, emailType EmailType, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	out := make(map[uuid.UUID]bool)
	for _, row := range ms.scheduled {
		if row.EmailType == emailType && wanted[row.UserID] {
			out[row.UserID] = true
		}
	}
	return out, nil
}

// ScheduledByID returns a copy of one scheduled email row.
func (ms *MemoryStorage) ScheduledByID(id uuid.UUID) (*ScheduledEmail, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	row, exists := ms.scheduled[id]
	if !exists {
		return nil, false
	}
	rowCopy := *row
	rowCopy.Payload = maps.Clone(row.Payload)
	return &rowCopy, true
}

// ScheduledCount returns the number of scheduled rows of the given type.
func (ms *MemoryStorage) ScheduledCount(emailType EmailType) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	n := 0
	for _, row := range ms.scheduled {
		if row.EmailType == emailType {
			n++
		}
	}
	return n
}

// ScheduledRows returns copies of all scheduled rows of the given type.
func (ms *MemoryStorage) ScheduledRows(emailType EmailType) []ScheduledEmail {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []ScheduledEmail
	for _, row := range ms.scheduled {
		if row.EmailType == emailType {
			rowCopy := *row
			rowCopy.Payload = maps.Clone(row.Payload)
			out = append(out, rowCopy)
		}
	}
	return out
}

// TouchActivity implements ActivityRepository. The stored timestamp never
// moves backward.
func (ms *MemoryStorage) TouchActivity(ctx context.Context, userID uuid.UUID, seenAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if current, ok := ms.activity[userID]; ok && current.After(seenAt) {
		return nil
	}
	ms.activity[userID] = seenAt
	return nil
}

// LastSeenAt returns the stored last-seen timestamp for a user.
func (ms *MemoryStorage) LastSeenAt(userID uuid.UUID) (time.Time, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ts, ok := ms.activity[userID]
	return ts, ok
}

// InactiveSince implements ActivityRepository.
func (ms *MemoryStorage) InactiveSince(ctx context.Context, cutoff time.Time) ([]UserActivity, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []UserActivity
	for userID, lastSeen := range ms.activity {
		if lastSeen.Before(cutoff) {
			out = append(out, UserActivity{UserID: userID, LastSeenAt: lastSeen})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.Before(out[j].LastSeenAt)
	})
	return out, nil
}

// ProfileByID implements ProfileRepository.
func (ms *MemoryStorage) ProfileByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, exists := ms.profiles[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	profileCopy := *p
	return &profileCopy, nil
}

// ProfilesCreatedBefore implements ProfileRepository.
func (ms *MemoryStorage) ProfilesCreatedBefore(ctx context.Context, cutoff time.Time) ([]Profile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []Profile
	for _, p := range ms.profiles {
		if p.CreatedAt.Before(cutoff) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
