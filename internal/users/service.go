package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, in NewUser, entry shared.AuditLog) (int64, error)
}

// RoleResolver maps role names to registered roles.
type RoleResolver interface {
	RoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	roles  RoleResolver
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, logger: logger, cost: bcrypt.DefaultCost, now: time.Now}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUser registers an account. actorID is zero for system callers.
func (s *Service) CreateUser(ctx context.Context, actorID int64, in CreateInput) (User, error) {
	username := auth.NormalizeUsername(in.Username)
	role, err := s.roles.RoleByName(ctx, in.Role)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			return User{}, ErrUnknownRole
		}
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	id, err := s.repo.CreateUser(ctx, NewUser{Username: username, PasswordHash: string(hash), RoleID: role.ID}, shared.AuditLog{
		ActorID: actorID,
		Action:  "user.create",
		Entity:  "user",
		Meta:    map[string]any{"username": username, "role": role.Name},
		At:      now,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", id), slog.String("role", role.Name), slog.Int64("actor_id", actorID))
	return User{ID: id, Username: username, Role: role.Name, IsActive: true, CreatedAt: now, UpdatedAt: now}, nil
}
