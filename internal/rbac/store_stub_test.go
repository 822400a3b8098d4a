package rbac

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/barq-desk/barq/internal/shared"
)

// stubStore is an in-memory Store keyed by user id.
type stubStore struct {
	mu          sync.Mutex
	identities  map[int64]Identity
	permissions map[int64][]string
	err         error
	lookups     atomic.Int32
	block       chan struct{}
}

func newStubStore() *stubStore {
	return &stubStore{identities: map[int64]Identity{}, permissions: map[int64][]string{}}
}

func (s *stubStore) addUser(id int64, role string, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id] = Identity{UserID: id, Username: role + "-user", RoleName: role}
	s.permissions[id] = perms
}

func (s *stubStore) setPermissions(id int64, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[id] = perms
}

func (s *stubStore) ListRoles(context.Context) ([]Role, error)           { return nil, nil }
func (s *stubStore) GetRole(context.Context, int64) (Role, error)        { return Role{}, ErrNotFound }
func (s *stubStore) GetRoleByName(context.Context, string) (Role, error) { return Role{}, ErrNotFound }
func (s *stubStore) ListPermissions(context.Context) ([]Permission, error) {
	return nil, nil
}
func (s *stubStore) RolePermissions(context.Context, int64) ([]Permission, error) {
	return nil, nil
}

func (s *stubStore) LookupIdentity(ctx context.Context, userID int64) (Identity, error) {
	s.lookups.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Identity{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[userID]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return id, nil
}

func (s *stubStore) UserPermissions(_ context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.permissions[userID]...), nil
}

func (s *stubStore) EnsureRole(context.Context, string, string) (Role, error) { return Role{}, nil }
func (s *stubStore) EnsurePermission(context.Context, string, string) (Permission, error) {
	return Permission{}, nil
}
func (s *stubStore) GrantRolePermissions(context.Context, int64, []int64) (int, error) {
	return 0, nil
}
func (s *stubStore) ReplaceRolePermissions(context.Context, int64, []int64, shared.AuditLog) error {
	return nil
}

type recordedDecision struct {
	action  string
	allowed bool
}

type stubRecorder struct {
	mu        sync.Mutex
	decisions []recordedDecision
}

func (r *stubRecorder) ObserveAuthz(action string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, recordedDecision{action, allowed})
}
