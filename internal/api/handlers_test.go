package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

type mockService struct{ mock.Mock }

func (m *mockService) BookAppointment(ctx context.Context, in appointment.BookInput) (*appointment.Appointment, error) {
	args := m.Called(ctx, in)
	appt, _ := args.Get(0).(*appointment.Appointment)
	return appt, args.Error(1)
}

func (m *mockService) CancelAppointment(ctx context.Context, in appointment.CancelInput) (*appointment.Appointment, error) {
	args := m.Called(ctx, in)
	appt, _ := args.Get(0).(*appointment.Appointment)
	return appt, args.Error(1)
}

func (m *mockService) ListAppointments(ctx context.Context, userID uuid.UUID, page int) ([]appointment.AppointmentDetail, error) {
	args := m.Called(ctx, userID, page)
	details, _ := args.Get(0).([]appointment.AppointmentDetail)
	return details, args.Error(1)
}

func (m *mockService) ListSchedule(ctx context.Context, in appointment.ScheduleInput) ([]appointment.AppointmentDetail, error) {
	args := m.Called(ctx, in)
	details, _ := args.Get(0).([]appointment.AppointmentDetail)
	return details, args.Error(1)
}

var testNow = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

func (m *mockService) Now() time.Time { return testNow }

func (m *mockService) Policy() appointment.Policy { return appointment.DefaultPolicy() }

type mockReader struct{ mock.Mock }

func (m *mockReader) ListUnread(ctx context.Context, recipientID uuid.UUID, limit int) ([]appointment.Notification, error) {
	args := m.Called(ctx, recipientID, limit)
	notes, _ := args.Get(0).([]appointment.Notification)
	return notes, args.Error(1)
}

func newTestRouter(svc *mockService) http.Handler {
	return NewRouter(RouterConfig{Service: svc, Env: "test"})
}

func do(t *testing.T, h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set(headerUserID, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleAppointment(requester, provider uuid.UUID, at time.Time) *appointment.Appointment {
	return &appointment.Appointment{
		ID:          uuid.New(),
		RequesterID: requester,
		ProviderID:  provider,
		ScheduledAt: at,
	}
}

func TestBookAppointmentHandler(t *testing.T) {
	svc := &mockService{}
	user, provider := uuid.New(), uuid.New()
	slot := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	svc.On("BookAppointment", mock.Anything, appointment.BookInput{
		RequesterID: user.String(),
		ProviderID:  provider.String(),
		Date:        "2030-01-01T10:30:00Z",
	}).Return(sampleAppointment(user, provider, slot), nil).Once()

	body := fmt.Sprintf(`{"provider_id":%q,"date":"2030-01-01T10:30:00Z"}`, provider)
	rec := do(t, newTestRouter(svc), http.MethodPost, "/appointments", user.String(), body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	var resp AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, slot, resp.Date)
	assert.False(t, resp.Past)
	assert.True(t, resp.Cancelable)
	svc.AssertExpectations(t)
}

func TestBookAppointmentHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &appointment.ValidationError{Fields: []appointment.FieldError{{Field: "date", Rule: "isodate"}}}, http.StatusBadRequest, "validation_failed"},
		{"invalid provider", appointment.ErrInvalidProvider, http.StatusUnauthorized, "invalid_provider"},
		{"past date", appointment.ErrPastDate, http.StatusBadRequest, "past_date"},
		{"slot taken", fmt.Errorf("%w: lock", appointment.ErrSlotUnavailable), http.StatusConflict, "slot_unavailable"},
		{"storage", fmt.Errorf("%w: boom", appointment.ErrStorage), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("BookAppointment", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(t, newTestRouter(svc), http.MethodPost, "/appointments", uuid.NewString(), `{}`)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestHandlers_RequireUser(t *testing.T) {
	svc := &mockService{}
	router := newTestRouter(svc)

	for _, user := range []string{"", "nope"} {
		rec := do(t, router, http.MethodGet, "/appointments", user, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	svc.AssertNotCalled(t, "ListAppointments", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookAppointmentHandler_BadJSON(t *testing.T) {
	rec := do(t, newTestRouter(&mockService{}), http.MethodPost, "/appointments", uuid.NewString(), `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointmentsHandler(t *testing.T) {
	svc := &mockService{}
	user, provider := uuid.New(), uuid.New()
	appt := sampleAppointment(user, provider, time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC))

	svc.On("ListAppointments", mock.Anything, user, 2).Return([]appointment.AppointmentDetail{{
		Appointment: *appt,
		Provider:    &appointment.Party{ID: provider, Name: "Bruno", Email: "bruno@example.com"},
	}}, nil).Once()
	svc.On("ListAppointments", mock.Anything, user, 1).Return([]appointment.AppointmentDetail{}, nil).Once()

	router := newTestRouter(svc)

	rec := do(t, router, http.MethodGet, "/appointments?page=2", user.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bruno@example.com")

	var resp []AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].Provider)
	assert.Equal(t, "Bruno", resp[0].Provider.Name)
	assert.False(t, resp[0].Past)
	// 09:00 is less than two hours after 08:00
	assert.False(t, resp[0].Cancelable)

	rec = do(t, router, http.MethodGet, "/appointments?page=abc", user.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	svc.AssertExpectations(t)
}

func TestCancelAppointmentHandler(t *testing.T) {
	user := uuid.New()
	id := uuid.New()
	canceledAt := testNow
	appt := sampleAppointment(user, uuid.New(), time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC))
	appt.ID = id
	appt.CanceledAt = &canceledAt

	in := appointment.CancelInput{ActorID: user.String(), AppointmentID: id.String()}

	t.Run("ok", func(t *testing.T) {
		svc := &mockService{}
		svc.On("CancelAppointment", mock.Anything, in).Return(appt, nil)

		rec := do(t, newTestRouter(svc), http.MethodDelete, "/appointments/"+id.String(), user.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AppointmentResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.NotNil(t, resp.CanceledAt)
		assert.Empty(t, resp.Warning)
		assert.False(t, resp.Cancelable)
	})

	t.Run("dispatch failure is a warning", func(t *testing.T) {
		svc := &mockService{}
		svc.On("CancelAppointment", mock.Anything, in).
			Return(appt, fmt.Errorf("%w: %w", appointment.ErrDispatchFailed, errors.New("stream down")))

		rec := do(t, newTestRouter(svc), http.MethodDelete, "/appointments/"+id.String(), user.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AppointmentResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, appointment.ErrDispatchFailed.Error(), resp.Warning)
	})

	for _, tc := range []struct {
		err    error
		status int
	}{
		{appointment.ErrForbidden, http.StatusForbidden},
		{appointment.ErrTooLateToCancel, http.StatusUnprocessableEntity},
		{appointment.ErrAppointmentNotFound, http.StatusNotFound},
	} {
		t.Run(tc.err.Error(), func(t *testing.T) {
			svc := &mockService{}
			svc.On("CancelAppointment", mock.Anything, in).Return(nil, tc.err)

			rec := do(t, newTestRouter(svc), http.MethodDelete, "/appointments/"+id.String(), user.String(), "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestListScheduleHandler(t *testing.T) {
	svc := &mockService{}
	provider, requester := uuid.New(), uuid.New()
	appt := sampleAppointment(requester, provider, time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC))

	svc.On("ListSchedule", mock.Anything, appointment.ScheduleInput{ProviderID: provider.String(), Date: "2030-01-02"}).
		Return([]appointment.AppointmentDetail{{Appointment: *appt, Requester: &appointment.Party{ID: requester, Name: "Ana", Email: "ana@example.com"}}}, nil)

	rec := do(t, newTestRouter(svc), http.MethodGet, "/schedule?date=2030-01-02", provider.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ana@example.com")

	var resp []AppointmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].Requester)
	assert.Equal(t, "Ana", resp[0].Requester.Name)
	assert.Nil(t, resp[0].Provider)
}

func TestListNotificationsHandler(t *testing.T) {
	reader := &mockReader{}
	user := uuid.New()
	reader.On("ListUnread", mock.Anything, user, notificationsLimit).Return([]appointment.Notification{{
		ID:          uuid.New(),
		RecipientID: user,
		Content:     "Novo agendamento de Ana para o dia 02 de janeiro, às 10:00h",
		CreatedAt:   testNow,
	}}, nil)

	router := NewRouter(RouterConfig{Service: &mockService{}, Notifications: reader})
	rec := do(t, router, http.MethodGet, "/notifications", user.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []NotificationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].Content, "Novo agendamento de Ana")
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name   string
		checks []ReadyCheck
		status int
		state  string
	}{
		{"all up", []ReadyCheck{{Name: "postgres", Critical: true, Check: ok}, {Name: "redis", Check: ok}}, http.StatusOK, "ok"},
		{"redis down", []ReadyCheck{{Name: "postgres", Critical: true, Check: ok}, {Name: "redis", Check: down}}, http.StatusOK, "degraded"},
		{"postgres down", []ReadyCheck{{Name: "postgres", Critical: true, Check: down}, {Name: "redis", Check: ok}}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(RouterConfig{Service: &mockService{}, ReadyChecks: tt.checks})
			rec := do(t, router, http.MethodGet, "/health/ready", "", "")
			assert.Equal(t, tt.status, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.state, resp.Status)
		})
	}

	rec := do(t, newTestRouter(&mockService{}), http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
