package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/shared"
)

// Repository is the persistence port of the lifecycle manager.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, field string, makerID int64, at time.Time) (int64, error)
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, int, error)
	// Decide moves an active request at version to status. It returns
	// ErrAlreadyDecided when no active row at that version exists.
	Decide(ctx context.Context, id int64, version int, status Status, checkerID int64, at time.Time) error
	InsertApproval(ctx context.Context, log shared.ApprovalLog) error
	ListApprovals(ctx context.Context, requestID int64) ([]shared.ApprovalLog, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const selectRequest = `SELECT r.id, r.field, r.status, r.created_at, r.updated_at, r.version,
       m.id, m.username, c.id, c.username
FROM requests r
JOIN users m ON m.id = r.maker_id
LEFT JOIN users c ON c.id = r.checker_id`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req         Request
		status      string
		checkerID   *int64
		checkerName *string
	)
	err := row.Scan(&req.ID, &req.Field, &status, &req.CreatedAt, &req.UpdatedAt, &req.Version,
		&req.Maker.ID, &req.Maker.Username, &checkerID, &checkerName)
	if err != nil {
		return Request{}, err
	}
	req.Status = Status(status)
	if checkerID != nil {
		req.Checker = &UserRef{ID: *checkerID}
		if checkerName != nil {
			req.Checker.Username = *checkerName
		}
	}
	return req, nil
}

func (r *repository) Create(ctx context.Context, field string, makerID int64, at time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO requests (field, status, maker_id, checker_id, version, created_at, updated_at)
VALUES ($1, $2, $3, NULL, 1, $4, $4)
RETURNING id`, field, string(StatusPending), makerID, at).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert request: %w", err)
	}
	return id, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, selectRequest+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Request, int, error) {
	var (
		where strings.Builder
		args  []interface{}
	)
	if filter.MakerID != nil {
		args = append(args, *filter.MakerID)
		fmt.Fprintf(&where, " WHERE r.maker_id = $%d", len(args))
	}

	total := 0
	if filter.Page.Enabled() {
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM requests r`+where.String(), args...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count requests: %w", err)
		}
	}

	query := selectRequest + where.String() + ` ORDER BY r.id DESC`
	if filter.Page.Enabled() {
		args = append(args, filter.Page.Limit(), filter.Page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if !filter.Page.Enabled() {
		total = len(out)
	}
	return out, total, nil
}

func (r *repository) Decide(ctx context.Context, id int64, version int, status Status, checkerID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE requests
SET status = $2, checker_id = $3, version = version + 1, updated_at = $4
WHERE id = $1 AND version = $5 AND status = ANY($6::text[])`,
		id, string(status), checkerID, at, version, ActiveStatuses())
	if err != nil {
		return fmt.Errorf("decide request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDecided
	}
	return nil
}

func (r *repository) InsertApproval(ctx context.Context, log shared.ApprovalLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `INSERT INTO approvals (request_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5)`, log.RequestID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		return fmt.Errorf("record approval: %w", err)
	}
	return nil
}

func (r *repository) ListApprovals(ctx context.Context, requestID int64) ([]shared.ApprovalLog, error) {
	rows, err := r.db.Query(ctx, `SELECT id, request_id, actor_id, action, note, at
FROM approvals WHERE request_id = $1 ORDER BY at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := []shared.ApprovalLog{}
	for rows.Next() {
		var l shared.ApprovalLog
		var action string
		if err := rows.Scan(&l.ID, &l.RequestID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Action = shared.ApprovalAction(action)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
