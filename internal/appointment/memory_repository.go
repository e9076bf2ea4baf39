package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/clock"
)

// MemoryStore keeps appointments in process. A single mutex serializes
// writers, which makes Create's check-then-insert atomic.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*Appointment
	clock clock.Clock
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System
	}
	return &MemoryStore{
		byID:  make(map[uuid.UUID]*Appointment),
		clock: c,
	}
}

func (m *MemoryStore) Create(ctx context.Context, requesterID, providerID uuid.UUID, slot time.Time) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("create appointment", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeAtLocked(providerID, slot) {
		return nil, ErrSlotUnavailable
	}

	now := m.clock.Now()
	appt := &Appointment{
		ID:          uuid.New(),
		RequesterID: requesterID,
		ProviderID:  providerID,
		ScheduledAt: slot.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.byID[appt.ID] = appt

	out := *appt
	return &out, nil
}

func (m *MemoryStore) FindActiveByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.byID[id]
	if !ok || appt.CanceledAt != nil {
		return nil, ErrAppointmentNotFound
	}
	out := *appt
	return &out, nil
}

func (m *MemoryStore) Cancel(ctx context.Context, appt *Appointment, at time.Time) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("cancel appointment", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[appt.ID]
	if !ok || stored.CanceledAt != nil {
		return nil, ErrAppointmentNotFound
	}

	canceledAt := at.UTC()
	stored.CanceledAt = &canceledAt
	stored.UpdatedAt = canceledAt

	out := *stored
	return &out, nil
}

func (m *MemoryStore) HasActiveAt(ctx context.Context, providerID uuid.UUID, slot time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeAtLocked(providerID, slot), nil
}

func (m *MemoryStore) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error) {
	result := m.filterSorted(func(a *Appointment) bool {
		return a.RequesterID == userID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []Appointment{}, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListForProviderOnDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error) {
	from, to := clock.StartOfDay(day), clock.EndOfDay(day)
	return m.filterSorted(func(a *Appointment) bool {
		return a.ProviderID == providerID &&
			!a.ScheduledAt.Before(from) &&
			!a.ScheduledAt.After(to)
	}), nil
}

// Get returns any appointment, cancelled or not.
func (m *MemoryStore) Get(id uuid.UUID) (Appointment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.byID[id]
	if !ok {
		return Appointment{}, false
	}
	return *appt, true
}

func (m *MemoryStore) activeAtLocked(providerID uuid.UUID, slot time.Time) bool {
	for _, a := range m.byID {
		if a.ProviderID == providerID && a.CanceledAt == nil && a.ScheduledAt.Equal(slot) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) filterSorted(keep func(*Appointment) bool) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []Appointment{}
	for _, a := range m.byID {
		if a.CanceledAt == nil && keep(a) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result
}
