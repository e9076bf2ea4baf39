package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

// PgSink appends provider notifications to the notifications table.
type PgSink struct {
	pool *pgxpool.Pool
}

func NewPgSink(pool *pgxpool.Pool) *PgSink {
	return &PgSink{pool: pool}
}

func (s *PgSink) Record(ctx context.Context, recipientID uuid.UUID, content string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, content, read, created_at)
		VALUES ($1, $2, $3, false, now())
	`, uuid.New(), recipientID, content)
	if err != nil {
		return fmt.Errorf("%w: record notification: %w", appointment.ErrStorage, err)
	}
	return nil
}

// ListUnread returns a recipient's unread notifications, newest first.
func (s *PgSink) ListUnread(ctx context.Context, recipientID uuid.UUID, limit int) ([]appointment.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, content, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND read = false
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %w", appointment.ErrStorage, err)
	}
	defer rows.Close()

	result := []appointment.Notification{}
	for rows.Next() {
		var n appointment.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Content, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan notification: %w", appointment.ErrStorage, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list notifications: %w", appointment.ErrStorage, err)
	}
	return result, nil
}
