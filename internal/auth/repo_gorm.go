package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/barq-desk/barq/internal/platform/db"
)

// GormRepository implements Repository on the embedded store.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs the SQLite-backed repository.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

type userRow struct {
	ID           int64
	Username     string
	PasswordHash string
	RoleID       int64
	RoleName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FindByUsername fetches a user and its role name by normalized username.
func (r *GormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var row userRow
	err := r.db.WithContext(ctx).
		Table("users u").
		Select("u.id, u.username, u.password_hash, u.role_id, ro.name AS role_name, u.is_active, u.created_at, u.updated_at").
		Joins("JOIN roles ro ON ro.id = u.role_id").
		Where("u.username = ?", username).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user := User(row)
	return &user, nil
}

// CreateSession persists a new login session.
func (r *GormRepository) CreateSession(ctx context.Context, s Session) error {
	model := db.AuthSessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		IP:        s.IP,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt.UTC(),
		ExpiresAt: s.ExpiresAt.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "expires_at"}),
	}).Create(&model).Error
}

// DeleteSession removes a session record.
func (r *GormRepository) DeleteSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.AuthSessionModel{}).Error
}

// PurgeExpiredSessions deletes rows that expired before the cutoff.
func (r *GormRepository) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before.UTC()).Delete(&db.AuthSessionModel{})
	return res.RowsAffected, res.Error
}

var _ Repository = (*GormRepository)(nil)
