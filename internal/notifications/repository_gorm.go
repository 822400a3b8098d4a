package notifications

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
)

// GormRepository implements Repository on the embedded store.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a GormRepository.
func NewGormRepository(gdb *gorm.DB) *GormRepository {
	return &GormRepository{db: gdb}
}

func (r *GormRepository) Insert(ctx context.Context, n Notification) (int64, error) {
	row := db.NotificationModel{
		UserID:    n.UserID,
		RequestID: n.RequestID,
		Kind:      n.Kind,
		Message:   n.Message,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *GormRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]Notification, error) {
	var rows []db.NotificationModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			RequestID: row.RequestID,
			Kind:      row.Kind,
			Message:   row.Message,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (r *GormRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&db.NotificationModel{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return int(n), err
}

func (r *GormRepository) MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&db.NotificationModel{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", at.UTC())
	return res.RowsAffected, res.Error
}

var _ Repository = (*GormRepository)(nil)
