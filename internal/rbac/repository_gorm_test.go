package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

func newSyncedService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	svc := NewService(NewGormRepository(gdb), nil)
	p, err := DefaultPolicy()
	require.NoError(t, err)
	_, err = svc.Sync(context.Background(), p, SyncEnsure)
	require.NoError(t, err)
	return svc, gdb
}

func createUser(t *testing.T, gdb *gorm.DB, username, role string, active bool) int64 {
	t.Helper()
	var r db.RoleModel
	require.NoError(t, gdb.Where("name = ?", role).First(&r).Error)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	u := db.UserModel{Username: username, PasswordHash: string(hash), RoleID: r.ID, IsActive: true}
	require.NoError(t, gdb.Create(&u).Error)
	if !active {
		require.NoError(t, gdb.Model(&u).Update("is_active", false).Error)
	}
	return u.ID
}

func TestGormSyncIsIdempotent(t *testing.T) {
	svc, _ := newSyncedService(t)
	ctx := context.Background()
	p, err := DefaultPolicy()
	require.NoError(t, err)

	report, err := svc.Sync(ctx, p, SyncEnsure)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Roles)
	assert.Zero(t, report.Granted)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "admin", roles[0].Name)
}

func TestGormGateResolvesUsers(t *testing.T) {
	svc, gdb := newSyncedService(t)
	makerID := createUser(t, gdb, "alice", shared.RoleMaker, true)
	checkerID := createUser(t, gdb, "bob", shared.RoleChecker, true)
	ghostID := createUser(t, gdb, "carol", shared.RoleChecker, false)
	gate := NewGate(svc, nil)
	ctx := context.Background()

	subject, allowed, err := gate.Check(ctx, makerID, shared.PermRequestCreate)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, "alice", subject.Username)
	assert.True(t, subject.HasRole(shared.RoleMaker))

	allowed, err = gate.Authorize(ctx, makerID, shared.PermRequestApprove)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = gate.Authorize(ctx, checkerID, shared.PermRequestApprove)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = gate.Authorize(ctx, ghostID, shared.PermRequestRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGormSetRolePermissions(t *testing.T) {
	svc, gdb := newSyncedService(t)
	ctx := context.Background()
	makerID := createUser(t, gdb, "alice", shared.RoleMaker, true)

	var maker db.RoleModel
	require.NoError(t, gdb.Where("name = ?", shared.RoleMaker).First(&maker).Error)

	_, err := svc.SetRolePermissions(ctx, 1, maker.ID, []string{"request:fly"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	grants, err := svc.SetRolePermissions(ctx, 1, maker.ID, []string{shared.PermRequestRead})
	require.NoError(t, err)
	require.Len(t, grants.Permissions, 1)
	assert.Equal(t, shared.PermRequestRead, grants.Permissions[0].Action)

	perms, err := svc.EffectivePermissions(ctx, makerID)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermRequestRead}, perms)

	var audits []db.AuditLogModel
	require.NoError(t, gdb.Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Equal(t, "role.permissions.replace", audits[0].Action)
	assert.Contains(t, audits[0].Meta, shared.PermRequestCreate)

	_, err = svc.SetRolePermissions(ctx, 1, 9999, nil)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestGormSyncReplaceRestoresPolicy(t *testing.T) {
	svc, gdb := newSyncedService(t)
	ctx := context.Background()
	var maker db.RoleModel
	require.NoError(t, gdb.Where("name = ?", shared.RoleMaker).First(&maker).Error)
	_, err := svc.SetRolePermissions(ctx, 1, maker.ID, []string{shared.PermUserRead})
	require.NoError(t, err)

	p, err := DefaultPolicy()
	require.NoError(t, err)
	_, err = svc.Sync(ctx, p, SyncReplace)
	require.NoError(t, err)

	matrix, err := svc.RoleMatrix(ctx)
	require.NoError(t, err)
	for _, row := range matrix {
		var actions []string
		for _, perm := range row.Permissions {
			actions = append(actions, perm.Action)
		}
		assert.ElementsMatch(t, p.GrantsFor(row.Role.Name), actions, row.Role.Name)
	}
}
