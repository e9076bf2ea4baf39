package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/mailqueue"
	"github.com/hackgods/appointment-booking/internal/notification"
)

type mockSender struct{ mock.Mock }

func (m *mockSender) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func job() appointment.CancellationJob {
	return appointment.CancellationJob{
		AppointmentID: uuid.New(),
		Requester:     appointment.Party{ID: uuid.New(), Name: "Ana"},
		Provider:      appointment.Party{ID: uuid.New(), Name: "Bruno", Email: "bruno@example.com"},
		ScheduledAt:   time.Date(2030, 3, 5, 9, 0, 0, 0, time.UTC),
	}
}

func TestCancellationMailer_Handle(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "Bruno <bruno@example.com>", "Agendamento cancelado",
		mock.MatchedBy(func(body string) bool {
			return assert.ObjectsAreEqual(
				"Olá, Bruno\n\nAna cancelou o agendamento do dia 05 de março, às 9:00h.\nO horário está livre para novos agendamentos.\n",
				body,
			)
		}),
	).Return(nil).Once()

	m := NewCancellationMailer(sender, notification.PtBRFormatter{})
	require.NoError(t, m.Handle(context.Background(), job()))
	sender.AssertExpectations(t)
}

func TestCancellationMailer_PropagatesSendError(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("relay down"))

	m := NewCancellationMailer(sender, notification.PtBRFormatter{})
	assert.EqualError(t, m.Handle(context.Background(), job()), "relay down")
}

func TestCancellationMailer_NeedsRecipient(t *testing.T) {
	sender := &mockSender{}
	j := job()
	j.Provider.Email = ""

	m := NewCancellationMailer(sender, notification.PtBRFormatter{})
	err := m.Handle(context.Background(), j)
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.ErrorIs(t, err, mailqueue.ErrPermanent)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "bruno@example.com", envelopeAddress("Bruno <bruno@example.com>"))
	assert.Equal(t, "ana@example.com", envelopeAddress(" ana@example.com "))
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("a@x", "b@y", "Oi", "corpo")
	assert.Contains(t, msg, "Subject: Oi\r\n")
	assert.Contains(t, msg, "charset=utf-8\r\n\r\ncorpo\r\n")
}
