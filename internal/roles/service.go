package roles

import (
	"context"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	RoleMatrix(ctx context.Context) ([]Row, error)
	SetRolePermissions(ctx context.Context, actorID, roleID int64, actions []string) (Row, error)
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns every role with its grants.
func (s *Service) ListRoles(ctx context.Context) ([]Row, error) {
	return s.repo.RoleMatrix(ctx)
}

// AssignPermissions replaces the grants of roleID.
func (s *Service) AssignPermissions(ctx context.Context, actorID, roleID int64, in AssignInput) (Row, error) {
	return s.repo.SetRolePermissions(ctx, actorID, roleID, in.Permissions)
}
