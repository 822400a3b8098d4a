package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barq-desk/barq/internal/platform/httpx"
)

// ErrUserNotFound is returned by repositories for unknown usernames.
var ErrUserNotFound = httpx.NewError(httpx.ErrNotFound, "user not found")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	CreateSession(ctx context.Context, s Session) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a user and its role name by normalized username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	const query = `SELECT u.id, u.username, u.password_hash, u.role_id, ro.name, u.is_active, u.created_at, u.updated_at
FROM users u
JOIN roles ro ON ro.id = u.role_id
WHERE u.username = $1`
	var user User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.RoleID, &user.RoleName,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, ip, user_agent, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
		s.ID, s.UserID, s.IP, s.UserAgent, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	return err
}

// PurgeExpiredSessions deletes rows that expired before the cutoff.
func (r *PGRepository) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
