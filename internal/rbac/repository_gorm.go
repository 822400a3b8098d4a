package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

// GormRepository persists the registry in the embedded SQLite store.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a GormRepository.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

func roleFromModel(m db.RoleModel) Role {
	return Role{ID: m.ID, Name: m.Name, Description: m.Description, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func permissionFromModel(m db.PermissionModel) Permission {
	return Permission{ID: m.ID, Action: m.Action, Description: m.Description}
}

// ListRoles returns all roles ordered by name.
func (r *GormRepository) ListRoles(ctx context.Context) ([]Role, error) {
	var rows []db.RoleModel
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, roleFromModel(row))
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *GormRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	return r.firstRole(ctx, "id = ?", id)
}

// GetRoleByName fetches a role by its unique name.
func (r *GormRepository) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return r.firstRole(ctx, "name = ?", name)
}

func (r *GormRepository) firstRole(ctx context.Context, query string, arg any) (Role, error) {
	var row db.RoleModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return roleFromModel(row), nil
}

// ListPermissions returns the catalogue ordered by action.
func (r *GormRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var rows []db.PermissionModel
	if err := r.db.WithContext(ctx).Order("action").Find(&rows).Error; err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, permissionFromModel(row))
	}
	return perms, nil
}

// RolePermissions lists permissions granted to a role.
func (r *GormRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	var rows []db.PermissionModel
	err := r.db.WithContext(ctx).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.action").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(rows))
	for _, row := range rows {
		perms = append(perms, permissionFromModel(row))
	}
	return perms, nil
}

// LookupIdentity resolves an active user and its role.
func (r *GormRepository) LookupIdentity(ctx context.Context, userID int64) (Identity, error) {
	var out struct {
		ID       int64
		Username string
		RoleID   int64
		RoleName string
	}
	res := r.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.username, users.role_id, roles.name AS role_name").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("users.id = ? AND users.is_active = ?", userID, true).
		Limit(1).
		Scan(&out)
	if res.Error != nil {
		return Identity{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Identity{}, ErrNotFound
	}
	return Identity{UserID: out.ID, Username: out.Username, RoleID: out.RoleID, RoleName: out.RoleName}, nil
}

// UserPermissions returns the action strings granted through the user's role.
func (r *GormRepository) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	var perms []string
	err := r.db.WithContext(ctx).
		Table("users").
		Joins("JOIN role_permissions rp ON rp.role_id = users.role_id").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("users.id = ? AND users.is_active = ?", userID, true).
		Pluck("p.action", &perms).Error
	return perms, err
}

// EnsureRole inserts the role or refreshes a non-empty description.
func (r *GormRepository) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	var row db.RoleModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = db.RoleModel{Name: name, Description: description}
			return tx.Create(&row).Error
		case err != nil:
			return err
		case description != "" && row.Description != description:
			row.Description = description
			return tx.Save(&row).Error
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return roleFromModel(row), nil
}

// EnsurePermission upserts a permission ensuring description is stored.
func (r *GormRepository) EnsurePermission(ctx context.Context, action, description string) (Permission, error) {
	var row db.PermissionModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("action = ?", action).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = db.PermissionModel{Action: action, Description: description}
			return tx.Create(&row).Error
		case err != nil:
			return err
		case description != "" && row.Description != description:
			row.Description = description
			return tx.Save(&row).Error
		}
		return nil
	})
	if err != nil {
		return Permission{}, err
	}
	return permissionFromModel(row), nil
}

// GrantRolePermissions attaches missing grants.
func (r *GormRepository) GrantRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (int, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}
	rows := grantRows(roleID, permissionIDs)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	return int(res.RowsAffected), res.Error
}

// ReplaceRolePermissions sets the exact grant set and writes the audit entry.
func (r *GormRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64, entry shared.AuditLog) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	meta, err := entry.MetaJSON()
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("role_id = ?", roleID)
		if len(permissionIDs) > 0 {
			del = del.Where("permission_id NOT IN ?", permissionIDs)
		}
		if err := del.Delete(&db.RolePermissionModel{}).Error; err != nil {
			return fmt.Errorf("detach permissions: %w", err)
		}
		if len(permissionIDs) > 0 {
			rows := grantRows(roleID, permissionIDs)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("attach permissions: %w", err)
			}
		}
		audit := db.AuditLogModel{
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			Entity:     entry.Entity,
			EntityID:   entry.EntityID,
			Meta:       string(meta),
			OccurredAt: entry.Timestamp(),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("audit role permissions: %w", err)
		}
		return nil
	})
}

func grantRows(roleID int64, permissionIDs []int64) []db.RolePermissionModel {
	now := time.Now().UTC()
	rows := make([]db.RolePermissionModel, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		rows = append(rows, db.RolePermissionModel{RoleID: roleID, PermissionID: id, CreatedAt: now})
	}
	return rows
}

var _ Store = (*GormRepository)(nil)
