package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

type gormRepository struct {
	db *gorm.DB
}

// NewGormRepository returns the embedded SQLite implementation.
func NewGormRepository(gdb *gorm.DB) Repository {
	return &gormRepository{db: gdb}
}

func (r *gormRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormRepository{db: tx})
	})
}

type requestRow struct {
	ID              int64
	Field           string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
	MakerID         int64
	MakerUsername   string
	CheckerID       *int64
	CheckerUsername *string
}

func (row requestRow) toDomain() Request {
	req := Request{
		ID:        row.ID,
		Field:     row.Field,
		Status:    Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Version:   row.Version,
		Maker:     UserRef{ID: row.MakerID, Username: row.MakerUsername},
	}
	if row.CheckerID != nil {
		req.Checker = &UserRef{ID: *row.CheckerID}
		if row.CheckerUsername != nil {
			req.Checker.Username = *row.CheckerUsername
		}
	}
	return req
}

func (r *gormRepository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("requests r").
		Select(`r.id, r.field, r.status, r.created_at, r.updated_at, r.version,
m.id AS maker_id, m.username AS maker_username, c.id AS checker_id, c.username AS checker_username`).
		Joins("JOIN users m ON m.id = r.maker_id").
		Joins("LEFT JOIN users c ON c.id = r.checker_id")
}

func (r *gormRepository) Create(ctx context.Context, field string, makerID int64, at time.Time) (int64, error) {
	row := db.RequestModel{
		Field:     field,
		Status:    string(StatusPending),
		MakerID:   makerID,
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}
	return row.ID, nil
}

func (r *gormRepository) Get(ctx context.Context, id int64) (Request, error) {
	var rows []requestRow
	if err := r.base(ctx).Where("r.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return Request{}, err
	}
	if len(rows) == 0 {
		return Request{}, ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *gormRepository) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.MakerID != nil {
			return q.Where("r.maker_id = ?", *filter.MakerID)
		}
		return q
	}

	var total int64
	if filter.Page.Enabled() {
		if err := scope(r.db.WithContext(ctx).Table("requests r")).Count(&total).Error; err != nil {
			return nil, 0, fmt.Errorf("count requests: %w", err)
		}
	}

	q := scope(r.base(ctx)).Order("r.id DESC")
	if filter.Page.Enabled() {
		q = q.Limit(filter.Page.Limit()).Offset(filter.Page.Offset())
	}
	var rows []requestRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	out := make([]Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	if !filter.Page.Enabled() {
		total = int64(len(out))
	}
	return out, int(total), nil
}

func (r *gormRepository) Decide(ctx context.Context, id int64, version int, status Status, checkerID int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&db.RequestModel{}).
		Where("id = ? AND version = ? AND status IN ?", id, version, ActiveStatuses()).
		Updates(map[string]any{
			"status":     string(status),
			"checker_id": checkerID,
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("decide request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *gormRepository) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	row := db.ApprovalModel{
		RequestID: log.RequestID,
		ActorID:   log.ActorID,
		Action:    string(log.Action),
		Note:      log.Note,
		At:        log.At,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record approval: %w", err)
	}
	return nil
}

func (r *gormRepository) ListApprovals(ctx context.Context, requestID int64) ([]shared.ApprovalLog, error) {
	var rows []db.ApprovalModel
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("at ASC, id ASC").Find(&rows).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	logs := make([]shared.ApprovalLog, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, shared.ApprovalLog{
			ID:        row.ID,
			RequestID: row.RequestID,
			ActorID:   row.ActorID,
			Action:    shared.ApprovalAction(row.Action),
			Note:      row.Note,
			At:        row.At,
		})
	}
	return logs, nil
}
