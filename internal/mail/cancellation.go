package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/mailqueue"
)

var ErrNoRecipient = fmt.Errorf("%w: provider has no email address", mailqueue.ErrPermanent)

// CancellationMailer tells the provider that a booking was cancelled.
type CancellationMailer struct {
	sender    Sender
	formatter appointment.SlotFormatter
}

func NewCancellationMailer(sender Sender, formatter appointment.SlotFormatter) *CancellationMailer {
	return &CancellationMailer{sender: sender, formatter: formatter}
}

// Handle matches mailqueue.Handler.
func (m *CancellationMailer) Handle(ctx context.Context, job appointment.CancellationJob) error {
	if job.Provider.Email == "" {
		return fmt.Errorf("%w: appointment %s", ErrNoRecipient, job.AppointmentID)
	}

	to := job.Provider.Email
	if job.Provider.Name != "" {
		to = fmt.Sprintf("%s <%s>", job.Provider.Name, job.Provider.Email)
	}

	if err := m.sender.Send(ctx, to, "Agendamento cancelado", m.render(job)); err != nil {
		return err
	}

	logging.FromContext(ctx).Info().
		Str("appointment_id", job.AppointmentID.String()).
		Str("provider_id", job.Provider.ID.String()).
		Msg("cancellation mail sent")
	return nil
}

func (m *CancellationMailer) render(job appointment.CancellationJob) string {
	provider := job.Provider.Name
	if provider == "" {
		provider = "prestador"
	}
	requester := job.Requester.Name
	if requester == "" {
		requester = "Um cliente"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s\n\n", provider)
	fmt.Fprintf(&b, "%s cancelou o agendamento do %s.\n", requester, m.formatter.FormatSlot(job.ScheduledAt))
	b.WriteString("O horário está livre para novos agendamentos.\n")
	return b.String()
}
