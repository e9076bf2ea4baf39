package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-booking/internal/clock"
)

func TestMemoryStore_CreateRejectsTakenSlot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(clock.Fixed(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	provider := uuid.New()
	slot := time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC)

	first, err := s.Create(ctx, uuid.New(), provider, slot)
	require.NoError(t, err)

	_, err = s.Create(ctx, uuid.New(), provider, slot)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// another provider may take the same hour
	_, err = s.Create(ctx, uuid.New(), uuid.New(), slot)
	assert.NoError(t, err)

	_, err = s.Cancel(ctx, first, slot.Add(-24*time.Hour))
	require.NoError(t, err)

	taken, err := s.HasActiveAt(ctx, provider, slot)
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = s.Create(ctx, uuid.New(), provider, slot)
	assert.NoError(t, err)
}

func TestMemoryStore_CancelledRowsStayStored(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	requester := uuid.New()

	appt, err := s.Create(ctx, requester, uuid.New(), time.Date(2030, 1, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	at := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = s.Cancel(ctx, appt, at)
	require.NoError(t, err)

	_, err = s.FindActiveByID(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	list, err := s.ListForUser(ctx, requester, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, ok := s.Get(appt.ID)
	require.True(t, ok)
	require.NotNil(t, stored.CanceledAt)
	assert.Equal(t, at, *stored.CanceledAt)
}

func TestMemoryStore_ListForProviderOnDay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	provider := uuid.New()

	for _, slot := range []time.Time{
		time.Date(2030, 1, 2, 23, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 23, 0, 0, 0, time.UTC),
	} {
		_, err := s.Create(ctx, uuid.New(), provider, slot)
		require.NoError(t, err)
	}

	got, err := s.ListForProviderOnDay(ctx, provider, time.Date(2030, 1, 2, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].ScheduledAt.Hour())
	assert.Equal(t, 23, got[1].ScheduledAt.Hour())
}

func TestMemoryStore_ListForUserOffset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	requester := uuid.New()

	for h := 8; h < 13; h++ {
		_, err := s.Create(ctx, requester, uuid.New(), time.Date(2030, 1, 2, h, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}

	got, err := s.ListForUser(ctx, requester, 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].ScheduledAt.Hour())
	assert.Equal(t, 11, got[1].ScheduledAt.Hour())

	got, err = s.ListForUser(ctx, requester, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.ListForUser(ctx, requester, 2, -4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 8, got[0].ScheduledAt.Hour())
}
