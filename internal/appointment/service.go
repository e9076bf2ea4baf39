package appointment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/appointment-booking/internal/clock"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/metrics"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
)

var tracer = otel.Tracer("github.com/hackgods/appointment-booking/internal/appointment")

type ServiceDeps struct {
	Store         Store
	Users         UserDirectory
	Notifications NotificationSink
	Mail          MailDispatcher
	Formatter     SlotFormatter
	// Locker is optional. Without it the store alone serializes bookings.
	Locker redisclient.Locker
	Clock  clock.Clock
	Policy Policy
}

type Service struct {
	store         Store
	availability  *AvailabilityIndex
	users         UserDirectory
	notifications NotificationSink
	mail          MailDispatcher
	formatter     SlotFormatter
	locker        redisclient.Locker
	clock         clock.Clock
	policy        Policy
}

func NewService(deps ServiceDeps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System
	}
	def := DefaultPolicy()
	if deps.Policy.PageSize <= 0 {
		deps.Policy.PageSize = def.PageSize
	}
	if deps.Policy.CancelCutoffHours < 0 {
		deps.Policy.CancelCutoffHours = def.CancelCutoffHours
	}

	return &Service{
		store:         deps.Store,
		availability:  NewAvailabilityIndex(deps.Store),
		users:         deps.Users,
		notifications: deps.Notifications,
		mail:          deps.Mail,
		formatter:     deps.Formatter,
		locker:        deps.Locker,
		clock:         deps.Clock,
		policy:        deps.Policy,
	}
}

func (s *Service) Policy() Policy { return s.policy }

func (s *Service) Now() time.Time { return s.clock.Now() }

// BookAppointment reserves the hour slot containing in.Date for the requester.
// The provider notification is best effort: a failure is logged and the
// booking stands.
func (s *Service) BookAppointment(ctx context.Context, in BookInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Book")
	defer span.End()

	appt, err := s.book(ctx, in)
	metrics.BookingsTotal.WithLabelValues(outcomeOf(err)).Inc()
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) book(ctx context.Context, in BookInput) (*Appointment, error) {
	cmd, err := ValidateBookInput(in)
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("appointment.requester_id", cmd.RequesterID.String()),
		attribute.String("appointment.provider_id", cmd.ProviderID.String()),
	)

	isProvider, err := s.users.IsProvider(ctx, cmd.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("%w: check provider: %w", ErrStorage, err)
	}
	if !isProvider {
		return nil, ErrInvalidProvider
	}

	slot := clock.TruncateToHour(cmd.Date)
	if clock.IsPast(slot, s.clock.Now()) {
		return nil, ErrPastDate
	}

	free, err := s.availability.IsFree(ctx, cmd.ProviderID, slot)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment
	err = s.withSlotLock(ctx, cmd.ProviderID, slot, func(lockCtx context.Context) error {
		appt, err := s.store.Create(lockCtx, cmd.RequesterID, cmd.ProviderID, slot)
		if err != nil {
			return err
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
		}
		return nil, err
	}

	s.notifyProvider(ctx, created)

	logging.FromContext(ctx).Info().
		Str("appointment_id", created.ID.String()).
		Str("provider_id", created.ProviderID.String()).
		Time("scheduled_at", created.ScheduledAt).
		Msg("appointment booked")

	return created, nil
}

// CancelAppointment soft-cancels an appointment owned by the actor and queues
// the cancellation mail. If queueing fails the cancellation is still committed:
// the updated appointment is returned together with an error matching
// ErrDispatchFailed.
func (s *Service) CancelAppointment(ctx context.Context, in CancelInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Cancel")
	defer span.End()

	appt, err := s.cancel(ctx, in)
	outcome := outcomeOf(err)
	if errors.Is(err, ErrDispatchFailed) {
		outcome = metrics.OutcomeOK
	}
	metrics.CancellationsTotal.WithLabelValues(outcome).Inc()
	endSpan(span, err)
	return appt, err
}

func (s *Service) cancel(ctx context.Context, in CancelInput) (*Appointment, error) {
	cmd, err := ValidateCancelInput(in)
	if err != nil {
		return nil, err
	}

	appt, err := s.store.FindActiveByID(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}

	if appt.RequesterID != cmd.ActorID {
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	if clock.IsWithinHoursOfNow(appt.ScheduledAt, s.policy.CancelCutoffHours, now) {
		return nil, ErrTooLateToCancel
	}

	updated, err := s.store.Cancel(ctx, appt, now)
	if err != nil {
		return nil, err
	}

	job := s.cancellationJob(ctx, updated)
	if err := s.mail.Enqueue(ctx, job); err != nil {
		metrics.DispatchFailures.Inc()
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("appointment_id", updated.ID.String()).
			Msg("cancellation mail not queued")
		return updated, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	logging.FromContext(ctx).Info().
		Str("appointment_id", updated.ID.String()).
		Msg("appointment cancelled")

	return updated, nil
}

// ListAppointments returns one page of the user's active appointments with
// the provider attached. Pages start at 1.
func (s *Service) ListAppointments(ctx context.Context, userID uuid.UUID, page int) ([]AppointmentDetail, error) {
	if page < 1 {
		page = 1
	}
	limit := s.policy.PageSize
	// no user has that many appointments; also keeps the offset from overflowing
	if limit > 0 && page-1 > math.MaxInt32/limit {
		return []AppointmentDetail{}, nil
	}
	offset := (page - 1) * limit

	appts, err := s.store.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	parties := s.partyCache()
	result := make([]AppointmentDetail, len(appts))
	for i, a := range appts {
		result[i] = AppointmentDetail{Appointment: a, Provider: parties(ctx, a.ProviderID)}
	}
	return result, nil
}

// ListSchedule returns the provider's active appointments on the given day
// with the requester attached. Only providers have a schedule.
func (s *Service) ListSchedule(ctx context.Context, in ScheduleInput) ([]AppointmentDetail, error) {
	q, err := ValidateScheduleInput(in)
	if err != nil {
		return nil, err
	}

	isProvider, err := s.users.IsProvider(ctx, q.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("%w: check provider: %w", ErrStorage, err)
	}
	if !isProvider {
		return nil, ErrInvalidProvider
	}

	appts, err := s.store.ListForProviderOnDay(ctx, q.ProviderID, q.Day)
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}

	parties := s.partyCache()
	result := make([]AppointmentDetail, len(appts))
	for i, a := range appts {
		result[i] = AppointmentDetail{Appointment: a, Requester: parties(ctx, a.RequesterID)}
	}
	return result, nil
}

func (s *Service) withSlotLock(ctx context.Context, providerID uuid.UUID, slot time.Time, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithSlotLock(ctx, providerID, slot, fn)
}

func (s *Service) notifyProvider(ctx context.Context, appt *Appointment) {
	logger := logging.FromContext(ctx)

	requester, err := s.users.Get(ctx, appt.RequesterID)
	if err != nil {
		metrics.NotificationFailures.Inc()
		logger.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("booking notification skipped, requester lookup failed")
		return
	}

	content := fmt.Sprintf("Novo agendamento de %s para o %s", requester.Name, s.formatter.FormatSlot(appt.ScheduledAt))
	if err := s.notifications.Record(ctx, appt.ProviderID, content); err != nil {
		metrics.NotificationFailures.Inc()
		logger.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("provider_id", appt.ProviderID.String()).
			Msg("booking notification not recorded")
	}
}

// cancellationJob snapshots the appointment. Directory misses only degrade
// the mail, so they are logged and the ids are kept.
func (s *Service) cancellationJob(ctx context.Context, appt *Appointment) CancellationJob {
	job := CancellationJob{
		AppointmentID: appt.ID,
		Requester:     Party{ID: appt.RequesterID},
		Provider:      Party{ID: appt.ProviderID},
		ScheduledAt:   appt.ScheduledAt,
	}
	if appt.CanceledAt != nil {
		job.CanceledAt = *appt.CanceledAt
	}

	for _, p := range []*Party{&job.Requester, &job.Provider} {
		found, err := s.users.Get(ctx, p.ID)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).
				Str("user_id", p.ID.String()).
				Msg("cancellation snapshot without user details")
			continue
		}
		*p = *found
	}
	return job
}

// partyCache memoizes directory lookups for one listing. A failed lookup
// degrades to an id-only party.
func (s *Service) partyCache() func(context.Context, uuid.UUID) *Party {
	seen := make(map[uuid.UUID]*Party)
	return func(ctx context.Context, id uuid.UUID) *Party {
		if p, ok := seen[id]; ok {
			return p
		}
		p, err := s.users.Get(ctx, id)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("user_id", id.String()).Msg("user lookup failed")
			p = &Party{ID: id}
		}
		seen[id] = p
		return p
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrInvalidProvider):
		return metrics.OutcomeInvalidProvider
	case errors.Is(err, ErrPastDate):
		return metrics.OutcomePastDate
	case errors.Is(err, ErrSlotUnavailable):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrAppointmentNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, ErrTooLateToCancel):
		return metrics.OutcomeTooLate
	default:
		return metrics.OutcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	if errors.Is(err, ErrStorage) {
		span.SetStatus(codes.Error, err.Error())
	}
}
