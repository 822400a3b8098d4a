package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

// Service orchestrates RBAC operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// RoleByName fetches a role by its case-insensitive name.
func (s *Service) RoleByName(ctx context.Context, name string) (Role, error) {
	return s.store.GetRoleByName(ctx, normalizeName(name))
}

// ListPermissions returns the catalogue ordered by action.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// RoleMatrix returns every role with its granted permissions.
func (s *Service) RoleMatrix(ctx context.Context) ([]RoleGrants, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	matrix := make([]RoleGrants, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			perms, err := s.store.RolePermissions(gctx, role.ID)
			if err != nil {
				return fmt.Errorf("role %s permissions: %w", role.Name, err)
			}
			matrix[i] = RoleGrants{Role: role, Permissions: perms}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrix, nil
}

// SetRolePermissions replaces the grants of a role with the given actions.
// Unknown actions are rejected; the change is audit-logged.
func (s *Service) SetRolePermissions(ctx context.Context, actorID, roleID int64, actions []string) (RoleGrants, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return RoleGrants{}, err
	}
	catalogue, err := s.store.ListPermissions(ctx)
	if err != nil {
		return RoleGrants{}, err
	}
	byAction := make(map[string]Permission, len(catalogue))
	for _, p := range catalogue {
		byAction[p.Action] = p
	}

	wanted := NewPermissionSet(actions...).Slice()
	ids := make([]int64, 0, len(wanted))
	for _, action := range wanted {
		p, ok := byAction[action]
		if !ok {
			return RoleGrants{}, fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, action)
		}
		ids = append(ids, p.ID)
	}

	current, err := s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return RoleGrants{}, err
	}
	held := make([]string, 0, len(current))
	for _, p := range current {
		held = append(held, p.Action)
	}
	added, removed := diffActions(held, wanted)

	entry := shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.permissions.replace",
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     map[string]any{"role": role.Name, "added": added, "removed": removed},
	}
	if err := s.store.ReplaceRolePermissions(ctx, roleID, ids, entry); err != nil {
		return RoleGrants{}, err
	}
	s.logger.Info("role permissions replaced",
		slog.String("role", role.Name),
		slog.Int64("actor_id", actorID),
		slog.Int("added", len(added)),
		slog.Int("removed", len(removed)))

	perms, err := s.store.RolePermissions(ctx, roleID)
	if err != nil {
		return RoleGrants{}, err
	}
	return RoleGrants{Role: role, Permissions: perms}, nil
}

// ResolveIdentity maps a user id to its identity and role.
func (s *Service) ResolveIdentity(ctx context.Context, userID int64) (Identity, error) {
	return s.store.LookupIdentity(ctx, userID)
}

// EffectivePermissions returns deduplicated, sorted permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(perms...).Slice(), nil
}

// LoadSubject resolves identity and permissions for userID.
func (s *Service) LoadSubject(ctx context.Context, userID int64) (Subject, error) {
	identity, err := s.store.LookupIdentity(ctx, userID)
	if err != nil {
		return Subject{}, err
	}
	perms, err := s.store.UserPermissions(ctx, userID)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Identity: identity, Permissions: NewPermissionSet(perms...)}, nil
}

func diffActions(held, wanted []string) (added, removed []string) {
	heldSet := make(map[string]struct{}, len(held))
	for _, a := range held {
		heldSet[a] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(wanted))
	for _, a := range wanted {
		wantSet[a] = struct{}{}
		if _, ok := heldSet[a]; !ok {
			added = append(added, a)
		}
	}
	for _, a := range held {
		if _, ok := wantSet[a]; !ok {
			removed = append(removed, a)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
