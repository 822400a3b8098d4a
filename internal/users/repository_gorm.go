package users

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

// GormRepository is the embedded-store implementation.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a GormRepository.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

// ListUsers returns all users ordered by username.
func (r *GormRepository) ListUsers(ctx context.Context) ([]User, error) {
	users := make([]User, 0)
	err := r.db.WithContext(ctx).
		Table("users u").
		Select("u.id, u.username, ro.name AS role, u.is_active, u.created_at, u.updated_at").
		Joins("JOIN roles ro ON ro.id = u.role_id").
		Order("u.username").
		Scan(&users).Error
	return users, err
}

// CreateUser inserts the account and its audit entry in one transaction.
func (r *GormRepository) CreateUser(ctx context.Context, in NewUser, entry shared.AuditLog) (int64, error) {
	at := entry.Timestamp()
	row := db.UserModel{
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		RoleID:       in.RoleID,
		IsActive:     true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}
		meta, err := entry.MetaJSON()
		if err != nil {
			return err
		}
		audit := db.AuditLogModel{
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			Entity:     entry.Entity,
			EntityID:   strconv.FormatInt(row.ID, 10),
			Meta:       string(meta),
			OccurredAt: at,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return fmt.Errorf("audit user create: %w", err)
		}
		return nil
	})
	return row.ID, err
}

var _ RepositoryPort = (*GormRepository)(nil)
