package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

// BookAppointmentRequest is the POST /appointments body. The requester is the
// caller identified by the X-User-ID header.
type BookAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

// PartyResponse is the other side of a listed appointment. Contact details
// stay private.
type PartyResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type AppointmentResponse struct {
	ID          uuid.UUID      `json:"id"`
	RequesterID uuid.UUID      `json:"requester_id"`
	ProviderID  uuid.UUID      `json:"provider_id"`
	Date        time.Time      `json:"date"`
	CanceledAt  *time.Time     `json:"canceled_at"`
	Past        bool           `json:"past"`
	Cancelable  bool           `json:"cancelable"`
	Provider    *PartyResponse `json:"provider,omitempty"`
	Requester   *PartyResponse `json:"requester,omitempty"`
	Warning     string         `json:"warning,omitempty"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string                   `json:"error"`
	Details string                   `json:"details,omitempty"`
	Fields  []appointment.FieldError `json:"fields,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, now time.Time, policy appointment.Policy) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		RequesterID: a.RequesterID,
		ProviderID:  a.ProviderID,
		Date:        a.ScheduledAt,
		CanceledAt:  a.CanceledAt,
		Past:        a.Past(now),
		Cancelable:  a.Cancelable(now, policy.CancelCutoffHours),
	}
}

func toDetailResponses(details []appointment.AppointmentDetail, now time.Time, policy appointment.Policy) []AppointmentResponse {
	resp := make([]AppointmentResponse, len(details))
	for i := range details {
		d := &details[i]
		resp[i] = toAppointmentResponse(&d.Appointment, now, policy)
		resp[i].Provider = toPartyResponse(d.Provider)
		resp[i].Requester = toPartyResponse(d.Requester)
	}
	return resp
}

func toPartyResponse(p *appointment.Party) *PartyResponse {
	if p == nil {
		return nil
	}
	return &PartyResponse{ID: p.ID, Name: p.Name}
}
