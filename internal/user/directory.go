package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

// Directory is the Postgres backed user store. It satisfies
// appointment.UserDirectory.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// IsProvider is false for unknown ids.
func (d *Directory) IsProvider(ctx context.Context, id uuid.UUID) (bool, error) {
	var provider bool
	err := d.pool.QueryRow(ctx, `SELECT provider FROM users WHERE id = $1`, id).Scan(&provider)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%w: check provider: %w", appointment.ErrStorage, err)
	}
	return provider, nil
}

func (d *Directory) Get(ctx context.Context, id uuid.UUID) (*appointment.Party, error) {
	var p appointment.Party
	err := d.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: get user: %w", appointment.ErrStorage, err)
	}
	return &p, nil
}

// Create validates, hashes the password and inserts the user.
func (d *Directory) Create(ctx context.Context, in NewUser) (*User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", appointment.ErrValidation, err)
	}

	hash, err := HashIfPresent(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Provider:     in.Provider,
	}

	err = d.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, provider, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, now(), now())
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Provider).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create user: %w", appointment.ErrStorage, err)
	}
	return u, nil
}

// ListProviderIDs returns up to limit provider ids.
func (d *Directory) ListProviderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return d.listIDs(ctx, true, limit)
}

// ListClientIDs returns up to limit non-provider ids.
func (d *Directory) ListClientIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return d.listIDs(ctx, false, limit)
}

func (d *Directory) listIDs(ctx context.Context, provider bool, limit int) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx, `SELECT id FROM users WHERE provider = $1 ORDER BY created_at LIMIT $2`, provider, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", appointment.ErrStorage, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", appointment.ErrStorage, err)
	}
	return ids, nil
}
