package notifications

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, n Notification) (int64, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, n Notification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, request_id, kind, message, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, n.UserID, n.RequestID, n.Kind, n.Message, n.CreatedAt.UTC()).Scan(&id)
	return id, err
}

func (r *PGRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, request_id, kind, message, read_at, created_at
FROM notifications WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.RequestID, &n.Kind, &n.Message, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

func (r *PGRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`, userID, at.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
