package waitlist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
)

type memRepo struct {
	mu            sync.Mutex
	entries       map[uuid.UUID]Entry
	notifications map[string]eventbus.SlotFreed // "<entry>|<slotkey>"
	latest        map[uuid.UUID]eventbus.SlotFreed
}

func newMemRepo() *memRepo {
	return &memRepo{
		entries:       map[uuid.UUID]Entry{},
		notifications: map[string]eventbus.SlotFreed{},
		latest:        map[uuid.UUID]eventbus.SlotFreed{},
	}
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (m *memRepo) Create(_ context.Context, entry Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.New()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.entries[entry.ID] = entry
	return &entry, nil
}

func (m *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, statuses []Status) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.DoctorID != doctorID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if e.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to Status, at time.Time) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	if e.Status != from {
		return nil, ErrEntryNotEligible
	}
	e.Status = to
	switch to {
	case StatusNotified:
		e.NotifiedAt = &at
	case StatusConfirmed:
		e.ConfirmedAt = &at
	}
	m.entries[id] = e
	return &e, nil
}

func (m *memRepo) FindOverdueNotified(_ context.Context, notifiedBefore time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Status == StatusNotified && e.NotifiedAt != nil && e.NotifiedAt.Before(notifiedBefore) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) RecordNotification(_ context.Context, entryID uuid.UUID, slot eventbus.SlotFreed) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s|%s", entryID, slot.SlotKey())
	if _, exists := m.notifications[key]; exists {
		return false, nil
	}
	m.notifications[key] = slot
	m.latest[entryID] = slot
	return true, nil
}

func (m *memRepo) LatestNotification(_ context.Context, entryID uuid.UUID) (*eventbus.SlotFreed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.latest[entryID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &slot, nil
}

type wlFixture struct {
	svc    *Service
	repo   *memRepo
	store  *eventbus.MemoryStore
	doctor uuid.UUID
	now    time.Time
}

func newWlFixture(t *testing.T) *wlFixture {
	t.Helper()
	repo := newMemRepo()
	store := eventbus.NewMemoryStore()
	bus := eventbus.NewBus(store, zap.NewNop())
	svc := NewService(repo, bus, zap.NewNop())

	f := &wlFixture{
		svc:    svc,
		repo:   repo,
		store:  store,
		doctor: uuid.New(),
		now:    time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.now }
	return f
}

func (f *wlFixture) addEntry(t *testing.T, priority Priority, createdAt time.Time) *Entry {
	t.Helper()
	entry, err := f.svc.Add(context.Background(), Entry{
		DoctorID:              f.doctor,
		PatientName:           "Carlos",
		PatientPhone:          "555-0101",
		ProcedureType:         "limpieza",
		EstimatedDurationMins: 30,
		Priority:              priority,
		CreatedAt:             createdAt,
	})
	require.NoError(t, err)
	return entry
}

func (f *wlFixture) slot() eventbus.SlotFreed {
	return eventbus.SlotFreed{
		DoctorID:     f.doctor,
		Start:        time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		DurationMins: 30,
	}
}

func TestAddValidation(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		entry Entry
	}{
		{"missing doctor", Entry{PatientName: "Ana", EstimatedDurationMins: 30, Priority: PriorityNormal}},
		{"missing name", Entry{DoctorID: f.doctor, EstimatedDurationMins: 30, Priority: PriorityNormal}},
		{"tiny duration", Entry{DoctorID: f.doctor, PatientName: "Ana", EstimatedDurationMins: 2, Priority: PriorityNormal}},
		{"bad priority", Entry{DoctorID: f.doctor, PatientName: "Ana", EstimatedDurationMins: 30, Priority: "asap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tc.entry)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}

	half := Entry{DoctorID: f.doctor, PatientName: "Ana", EstimatedDurationMins: 30, Priority: PriorityNormal}
	start := 9 * 60
	half.PreferredStartMins = &start
	_, err := f.svc.Add(ctx, half)
	assert.ErrorIs(t, err, ErrInvalidEntry, "half-open preferred window rejected")

	created, err := f.svc.Add(ctx, Entry{
		DoctorID:              f.doctor,
		PatientName:           "Ana",
		EstimatedDurationMins: 30,
		Priority:              PriorityNormal,
		Status:                StatusConfirmed, // ignored on intake
	})
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, created.Status)
}

func TestPromoteForSlotNotifiesTopCandidate(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	t0 := f.now.Add(-48 * time.Hour)
	f.addEntry(t, PriorityNormal, t0)
	urgent := f.addEntry(t, PriorityUrgent, t0.Add(time.Hour))

	notified, err := f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)
	require.NotNil(t, notified)
	assert.Equal(t, urgent.ID, notified.ID)
	assert.Equal(t, StatusNotified, notified.Status)
	require.NotNil(t, notified.NotifiedAt)
	assert.Equal(t, f.now, *notified.NotifiedAt)

	events, err := f.store.ListAfter(ctx, f.doctor, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.TypeWaitlistNotified, events[0].Type)
}

func TestPromoteForSlotIsIdempotent(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	f.addEntry(t, PriorityUrgent, f.now.Add(-time.Hour))

	first, err := f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)
	require.NotNil(t, first)

	// Same freed slot again: the winner is no longer waiting and nobody else
	// qualifies, so nothing happens.
	second, err := f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)
	assert.Nil(t, second)

	events, err := f.store.ListAfter(ctx, f.doctor, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPromoteForSlotEmptyWaitlist(t *testing.T) {
	f := newWlFixture(t)

	notified, err := f.svc.PromoteForSlot(context.Background(), f.slot())
	require.NoError(t, err)
	assert.Nil(t, notified)
}

func TestAdvanceLifecycle(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	entry := f.addEntry(t, PriorityNormal, f.now)

	// waiting -> confirmed skips the notified step.
	_, err := f.svc.Advance(ctx, entry.ID, StatusConfirmed)
	assert.ErrorIs(t, err, ErrEntryNotEligible)

	_, err = f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)

	confirmed, err := f.svc.Advance(ctx, entry.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Terminal states stay put.
	_, err = f.svc.Advance(ctx, entry.ID, StatusCancelled)
	assert.ErrorIs(t, err, ErrEntryNotEligible)
}

func TestAdvanceCancelFromNonTerminal(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	entry := f.addEntry(t, PriorityNormal, f.now)
	cancelled, err := f.svc.Advance(ctx, entry.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestExpireOverduePromotesNextCandidate(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	t0 := f.now.Add(-72 * time.Hour)
	first := f.addEntry(t, PriorityUrgent, t0)
	second := f.addEntry(t, PriorityHigh, t0.Add(time.Hour))

	notified, err := f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)
	require.Equal(t, first.ID, notified.ID)

	// Confirmation window passes without a reply.
	f.now = f.now.Add(3 * time.Hour)

	expired, err := f.svc.ExpireOverdue(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	firstFresh, err := f.repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, firstFresh.Status)

	// The same freed slot chained to the next candidate.
	secondFresh, err := f.repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, secondFresh.Status)

	// One notified, one expired, one notified again.
	events, err := f.store.ListAfter(ctx, f.doctor, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, eventbus.TypeWaitlistNotified, events[0].Type)
	assert.Equal(t, eventbus.TypeWaitlistExpired, events[1].Type)
	assert.Equal(t, eventbus.TypeWaitlistNotified, events[2].Type)
}

func TestExpireOverdueRespectsTTL(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	f.addEntry(t, PriorityNormal, f.now.Add(-time.Hour))
	_, err := f.svc.PromoteForSlot(ctx, f.slot())
	require.NoError(t, err)

	// Still inside the confirmation window.
	f.now = f.now.Add(time.Hour)
	expired, err := f.svc.ExpireOverdue(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestHandleFreedSlotEvent(t *testing.T) {
	f := newWlFixture(t)
	ctx := context.Background()

	entry := f.addEntry(t, PriorityNormal, f.now.Add(-time.Hour))

	payload, err := json.Marshal(f.slot())
	require.NoError(t, err)
	ev := eventbus.Event{Type: eventbus.TypeSlotFreed, Payload: payload}

	require.NoError(t, f.svc.HandleFreedSlotEvent(ctx, ev))

	fresh, err := f.repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNotified, fresh.Status)
}
