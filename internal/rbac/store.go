package rbac

import (
	"context"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = httpx.NewError(httpx.ErrNotFound, "rbac: not found")

// Store is the persistence port of the permission registry. Implementations
// live in repository.go (PostgreSQL) and repository_gorm.go (SQLite).
type Store interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)

	// LookupIdentity returns ErrNotFound for unknown or inactive users.
	LookupIdentity(ctx context.Context, userID int64) (Identity, error)
	UserPermissions(ctx context.Context, userID int64) ([]string, error)

	EnsureRole(ctx context.Context, name, description string) (Role, error)
	EnsurePermission(ctx context.Context, action, description string) (Permission, error)
	// GrantRolePermissions adds grants, returning how many were new.
	GrantRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (int, error)
	// ReplaceRolePermissions makes permissionIDs the exact grant set and
	// records entry in audit_logs within the same transaction.
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, entry shared.AuditLog) error
}
