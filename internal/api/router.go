package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/metrics"
)

type AppointmentService interface {
	BookAppointment(ctx context.Context, in appointment.BookInput) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, in appointment.CancelInput) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, userID uuid.UUID, page int) ([]appointment.AppointmentDetail, error)
	ListSchedule(ctx context.Context, in appointment.ScheduleInput) ([]appointment.AppointmentDetail, error)
	Now() time.Time
	Policy() appointment.Policy
}

type NotificationReader interface {
	ListUnread(ctx context.Context, recipientID uuid.UUID, limit int) ([]appointment.Notification, error)
}

type RouterConfig struct {
	Service       AppointmentService
	Notifications NotificationReader // optional
	ReadyChecks   []ReadyCheck
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.ReadyChecks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Service))
	r.Get("/schedule", listScheduleHandler(cfg.Service))

	if cfg.Notifications != nil {
		r.Get("/notifications", listNotificationsHandler(cfg.Notifications))
	}

	return otelhttp.NewHandler(r, "http.server")
}
