package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// Authorizer is the authorization gate consulted before every operation.
type Authorizer interface {
	Check(ctx context.Context, userID int64, required ...string) (rbac.Subject, bool, error)
}

// Locker serialises decisions on the same request.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Notifier is told about completed decisions. Failures are logged, not returned.
type Notifier interface {
	RequestDecided(ctx context.Context, evt DecisionEvent) error
}

// TransitionRecorder counts lifecycle transitions.
type TransitionRecorder interface {
	ObserveTransition(status string)
}

// ServiceDeps bundles collaborators. Repo, Gate and Logger are required.
type ServiceDeps struct {
	Repo     Repository
	Gate     Authorizer
	Locker   Locker
	Notifier Notifier
	Metrics  TransitionRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service enforces the request state machine.
type Service struct {
	repo     Repository
	gate     Authorizer
	locker   Locker
	notifier Notifier
	metrics  TransitionRecorder
	logger   *slog.Logger
	now      func() time.Time
	validate *validator.Validate
}

// NewService wires the lifecycle manager.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		repo:     deps.Repo,
		gate:     deps.Gate,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
		validate: validator.New(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Create submits a new pending request on behalf of a maker.
func (s *Service) Create(ctx context.Context, actorID int64, field string) (Request, error) {
	subject, err := s.requireRole(ctx, actorID, shared.RoleMaker, ErrMakersOnly, shared.PermRequestCreate)
	if err != nil {
		return Request{}, err
	}
	in := CreateInput{Field: field}
	in.Normalize()
	if in.Field == "" {
		return Request{}, ErrFieldRequired
	}
	if err := s.validate.Struct(in); err != nil {
		return Request{}, ErrFieldTooLong
	}
	field = in.Field

	now := s.now()
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		newID, err := repo.Create(ctx, field, subject.UserID, now)
		if err != nil {
			return err
		}
		id = newID
		return repo.InsertApproval(ctx, shared.ApprovalLog{
			RequestID: id,
			ActorID:   subject.UserID,
			Action:    shared.ApprovalSubmit,
			At:        now,
		})
	})
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	s.observe(StatusPending)
	s.logger.Info("request created", slog.Int64("request_id", id), slog.Int64("maker_id", subject.UserID))
	return s.repo.Get(ctx, id)
}

// Decide approves or rejects an active request. Deciding a request that is
// no longer active fails with ErrAlreadyDecided.
func (s *Service) Decide(ctx context.Context, requestID int64, rawAction string, actorID int64) (Request, error) {
	action, err := ParseAction(rawAction)
	if err != nil {
		return Request{}, err
	}
	subject, err := s.requireRole(ctx, actorID, shared.RoleChecker, ErrCheckersOnly, action.Permission())
	if err != nil {
		return Request{}, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.RequestLockKey(requestID))
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return Request{}, ErrDecisionBusy
			}
			return Request{}, err
		}
		defer release()
	}

	current, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !current.Status.Active() {
		return Request{}, ErrAlreadyDecided
	}

	next := action.Status()
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Decide(ctx, requestID, current.Version, next, subject.UserID, now); err != nil {
			return err
		}
		return repo.InsertApproval(ctx, shared.ApprovalLog{
			RequestID: requestID,
			ActorID:   subject.UserID,
			Action:    action.approval(),
			At:        now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			return Request{}, ErrAlreadyDecided
		}
		return Request{}, fmt.Errorf("decide request: %w", err)
	}
	s.observe(next)

	updated, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	s.logger.Info("request decided",
		slog.Int64("request_id", requestID),
		slog.String("status", string(next)),
		slog.Int64("checker_id", subject.UserID))
	s.notify(ctx, updated)
	return updated, nil
}

// List returns the requests visible to the actor: makers see their own,
// every other role sees all. Ordered newest first.
func (s *Service) List(ctx context.Context, actorID int64, page shared.PageRequest) (ListResult, error) {
	subject, err := s.requireRead(ctx, actorID)
	if err != nil {
		return ListResult{}, err
	}
	filter := ListFilter{Page: page}
	if subject.HasRole(shared.RoleMaker) {
		makerID := subject.UserID
		filter.MakerID = &makerID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list requests: %w", err)
	}
	return ListResult{Requests: items, Total: total}, nil
}

// Get returns one request under the same visibility rule as List. A maker
// asking for someone else's request gets ErrNotFound.
func (s *Service) Get(ctx context.Context, actorID, requestID int64) (Request, error) {
	subject, err := s.requireRead(ctx, actorID)
	if err != nil {
		return Request{}, err
	}
	req, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if subject.HasRole(shared.RoleMaker) && req.Maker.ID != subject.UserID {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// History returns the approval log of a visible request.
func (s *Service) History(ctx context.Context, actorID, requestID int64) ([]shared.ApprovalLog, error) {
	if _, err := s.Get(ctx, actorID, requestID); err != nil {
		return nil, err
	}
	return s.repo.ListApprovals(ctx, requestID)
}

func (s *Service) requireRead(ctx context.Context, actorID int64) (rbac.Subject, error) {
	subject, allowed, err := s.gate.Check(ctx, actorID, shared.PermRequestRead)
	if err != nil {
		return rbac.Subject{}, err
	}
	if !allowed {
		return rbac.Subject{}, ErrForbidden
	}
	return subject, nil
}

// requireRole checks the role first so a wrong-role actor gets the specific
// message, then the permission.
func (s *Service) requireRole(ctx context.Context, actorID int64, role string, roleErr error, perm string) (rbac.Subject, error) {
	subject, allowed, err := s.gate.Check(ctx, actorID, perm)
	if err != nil {
		return rbac.Subject{}, err
	}
	if subject.UserID == 0 {
		return rbac.Subject{}, ErrForbidden
	}
	if !subject.HasRole(role) {
		return rbac.Subject{}, roleErr
	}
	if !allowed {
		return rbac.Subject{}, ErrForbidden
	}
	return subject, nil
}

func (s *Service) observe(status Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(status))
	}
}

func (s *Service) notify(ctx context.Context, req Request) {
	if s.notifier == nil || req.Checker == nil {
		return
	}
	evt := DecisionEvent{
		RequestID: req.ID,
		MakerID:   req.Maker.ID,
		CheckerID: req.Checker.ID,
		Checker:   req.Checker.Username,
		Status:    req.Status,
		Field:     req.Field,
	}
	if err := s.notifier.RequestDecided(ctx, evt); err != nil {
		s.logger.Warn("enqueue decision notification", slog.Int64("request_id", req.ID), slog.Any("error", err))
	}
}
