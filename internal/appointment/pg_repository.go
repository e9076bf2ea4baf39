package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-booking/internal/clock"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
)

const appointmentColumns = `id, requester_id, provider_id, scheduled_at, canceled_at, created_at, updated_at`

// uniqueViolation is raised by appointments_active_slot_uq.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var canceledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.RequesterID,
		&a.ProviderID,
		&a.ScheduledAt,
		&canceledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ScheduledAt = a.ScheduledAt.UTC()
	if canceledAt != nil {
		c := canceledAt.UTC()
		a.CanceledAt = &c
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Interface methods

// Create serializes bookings of one provider slot with a transaction scoped
// advisory lock, re-checks inside the transaction and inserts. The partial
// unique index is the last line: a violation still maps to ErrSlotUnavailable.
func (r *PgRepository) Create(ctx context.Context, requesterID, providerID uuid.UUID, slot time.Time) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin create", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		redisclient.SlotKey(providerID, slot)); err != nil {
		return nil, storageErr("lock slot", err)
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND scheduled_at = $2
			  AND canceled_at IS NULL
		)
	`, providerID, slot).Scan(&taken)
	if err != nil {
		return nil, storageErr("check slot", err)
	}
	if taken {
		return nil, ErrSlotUnavailable
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, requester_id, provider_id, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING `+appointmentColumns, uuid.New(), requesterID, providerID, slot)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, storageErr("insert appointment", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotUnavailable
		}
		return nil, storageErr("commit appointment", err)
	}

	return appt, nil
}

func (r *PgRepository) FindActiveByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND canceled_at IS NULL
	`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageErr("find appointment", err)
	}
	return appt, nil
}

// Cancel only touches rows that are still active, so two racing cancels
// cannot both succeed.
func (r *PgRepository) Cancel(ctx context.Context, appt *Appointment, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET canceled_at = $2,
		    updated_at = now()
		WHERE id = $1
		  AND canceled_at IS NULL
		RETURNING `+appointmentColumns, appt.ID, at.UTC())

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageErr("cancel appointment", err)
	}
	return updated, nil
}

func (r *PgRepository) HasActiveAt(ctx context.Context, providerID uuid.UUID, slot time.Time) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			  AND scheduled_at = $2
			  AND canceled_at IS NULL
		)
	`, providerID, slot).Scan(&taken)
	if err != nil {
		return false, storageErr("check slot", err)
	}
	return taken, nil
}

func (r *PgRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1
		  AND canceled_at IS NULL
		ORDER BY scheduled_at ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, storageErr("list user appointments", err)
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, storageErr("list user appointments", err)
	}
	return result, nil
}

func (r *PgRepository) ListForProviderOnDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND canceled_at IS NULL
		  AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at ASC
	`, providerID, clock.StartOfDay(day), clock.EndOfDay(day))
	if err != nil {
		return nil, storageErr("list provider schedule", err)
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, storageErr("list provider schedule", err)
	}
	return result, nil
}
