package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/clock"
)

type State string

const (
	StateActive   State = "active"
	StateCanceled State = "canceled"
)

// CancellationMailKey is the stable job name consumers route on.
const CancellationMailKey = "CancellationMail"

type Appointment struct {
	ID          uuid.UUID
	RequesterID uuid.UUID
	ProviderID  uuid.UUID
	ScheduledAt time.Time
	CanceledAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Appointment) State() State {
	if a.CanceledAt != nil {
		return StateCanceled
	}
	return StateActive
}

// Past reports whether the slot has already started.
func (a *Appointment) Past(now time.Time) bool {
	return clock.IsPast(a.ScheduledAt, now)
}

// Cancelable reports whether the requester can still cancel at now.
func (a *Appointment) Cancelable(now time.Time, cutoffHours int) bool {
	return a.CanceledAt == nil && !clock.IsWithinHoursOfNow(a.ScheduledAt, cutoffHours, now)
}

// Party is the directory view of a user taking part in an appointment.
type Party struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

type AppointmentDetail struct {
	Appointment
	Provider  *Party
	Requester *Party
}

type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Content     string
	Read        bool
	CreatedAt   time.Time
}

// CancellationJob is the payload of a CancellationMail job: a snapshot of the
// appointment taken when it was cancelled.
type CancellationJob struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Requester     Party     `json:"requester"`
	Provider      Party     `json:"provider"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CanceledAt    time.Time `json:"canceled_at"`
}

type Policy struct {
	CancelCutoffHours int
	PageSize          int
}

func DefaultPolicy() Policy {
	return Policy{CancelCutoffHours: 2, PageSize: 20}
}
