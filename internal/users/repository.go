package users

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.username, ro.name, u.is_active, u.created_at, u.updated_at
FROM users u
JOIN roles ro ON ro.id = u.role_id
ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateUser inserts the account and its audit entry in one transaction.
func (r *Repository) CreateUser(ctx context.Context, in NewUser, entry shared.AuditLog) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO users (username, password_hash, role_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $4) RETURNING id`, in.Username, in.PasswordHash, in.RoleID, entry.Timestamp()).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}
		meta, err := entry.MetaJSON()
		if err != nil {
			return err
		}
		entry.EntityID = strconv.FormatInt(id, 10)
		if _, err := tx.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, entry.Timestamp()); err != nil {
			return fmt.Errorf("audit user create: %w", err)
		}
		return nil
	})
	return id, err
}

var _ RepositoryPort = (*Repository)(nil)
