package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistent appointment collection. Implementations own the
// slot conflict check: Create must check and insert atomically and report a
// taken slot as ErrSlotUnavailable. Backend failures wrap ErrStorage.
type Store interface {
	Create(ctx context.Context, requesterID, providerID uuid.UUID, slot time.Time) (*Appointment, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Cancel(ctx context.Context, appt *Appointment, at time.Time) (*Appointment, error)

	// For availability checks
	HasActiveAt(ctx context.Context, providerID uuid.UUID, slot time.Time) (bool, error)

	// Listings return active appointments only, ordered by scheduled_at ascending.
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error)
	// ListForProviderOnDay covers [StartOfDay(day), EndOfDay(day)] in UTC.
	ListForProviderOnDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error)
}

// UserDirectory resolves users referenced by appointments.
type UserDirectory interface {
	IsProvider(ctx context.Context, id uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*Party, error)
}

// NotificationSink records provider-facing notifications.
type NotificationSink interface {
	Record(ctx context.Context, recipientID uuid.UUID, content string) error
}

// MailDispatcher durably queues cancellation mail jobs. Enqueue returns once
// the queue has acknowledged the job; delivery is the worker's concern.
type MailDispatcher interface {
	Enqueue(ctx context.Context, job CancellationJob) error
}

// SlotFormatter renders a slot for humans in the deployment's locale.
type SlotFormatter interface {
	FormatSlot(t time.Time) string
}
