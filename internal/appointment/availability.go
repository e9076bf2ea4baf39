package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/clock"
)

// AvailabilityIndex answers whether a provider slot is free. Slots match on
// exact hour-truncated instants; there is no overlap arithmetic.
//
// It is a fast read-only pre-check. Store.Create repeats the check
// atomically, so a true answer is advisory.
type AvailabilityIndex struct {
	store Store
}

func NewAvailabilityIndex(store Store) *AvailabilityIndex {
	return &AvailabilityIndex{store: store}
}

func (a *AvailabilityIndex) IsFree(ctx context.Context, providerID uuid.UUID, slot time.Time) (bool, error) {
	taken, err := a.store.HasActiveAt(ctx, providerID, clock.TruncateToHour(slot))
	if err != nil {
		return false, err
	}
	return !taken, nil
}
