package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return r, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetRoleByName fetches a role by its unique name.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// ListPermissions returns the catalogue ordered by action.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.queryPermissions(ctx, `SELECT id, action, description FROM permissions ORDER BY action`)
}

// RolePermissions lists permissions granted to a role.
func (r *Repository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return r.queryPermissions(ctx, `SELECT p.id, p.action, p.description
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.action`, roleID)
}

func (r *Repository) queryPermissions(ctx context.Context, sql string, args ...any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// LookupIdentity resolves an active user and its role.
func (r *Repository) LookupIdentity(ctx context.Context, userID int64) (Identity, error) {
	var id Identity
	err := r.pool.QueryRow(ctx, `SELECT u.id, u.username, u.role_id, ro.name
FROM users u
JOIN roles ro ON ro.id = u.role_id
WHERE u.id = $1 AND u.is_active`, userID).Scan(&id.UserID, &id.Username, &id.RoleID, &id.RoleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	return id, nil
}

// UserPermissions returns the action strings granted through the user's role.
func (r *Repository) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.action
FROM users u
JOIN role_permissions rp ON rp.role_id = u.role_id
JOIN permissions p ON p.id = rp.permission_id
WHERE u.id = $1 AND u.is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		perms = append(perms, action)
	}
	return perms, rows.Err()
}

// EnsureRole inserts the role or refreshes a non-empty description.
func (r *Repository) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (name, description)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE
SET description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE roles.description END,
    updated_at = NOW()
RETURNING `+roleColumns, name, description))
}

// EnsurePermission upserts a permission ensuring description is stored.
func (r *Repository) EnsurePermission(ctx context.Context, action, description string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (action, description)
VALUES ($1, $2)
ON CONFLICT (action) DO UPDATE
SET description = CASE WHEN EXCLUDED.description <> '' THEN EXCLUDED.description ELSE permissions.description END
RETURNING id, action, description`, action, description).Scan(&p.ID, &p.Action, &p.Description)
	return p, err
}

// GrantRolePermissions attaches missing grants.
func (r *Repository) GrantRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (int, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ReplaceRolePermissions sets the exact grant set and writes the audit entry.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, entry shared.AuditLog) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	meta, err := entry.MetaJSON()
	if err != nil {
		return err
	}
	if permissionIDs == nil {
		permissionIDs = []int64{}
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions
WHERE role_id = $1 AND NOT (permission_id = ANY($2::bigint[]))`, roleID, permissionIDs); err != nil {
			return fmt.Errorf("detach permissions: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, unnest($2::bigint[])
ON CONFLICT DO NOTHING`, roleID, permissionIDs); err != nil {
			return fmt.Errorf("attach permissions: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta, entry.Timestamp()); err != nil {
			return fmt.Errorf("audit role permissions: %w", err)
		}
		return nil
	})
}

var _ Store = (*Repository)(nil)
