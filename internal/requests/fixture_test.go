package requests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

type fixture struct {
	gdb      *gorm.DB
	repo     Repository
	rbac     *rbac.Service
	service  *Service
	notifier *recordingNotifier
	metrics  *countingRecorder

	maker, otherMaker, checker, admin int64
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []DecisionEvent
}

func (n *recordingNotifier) RequestDecided(_ context.Context, evt DecisionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) ObserveTransition(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[status]++
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)

	rbacSvc := rbac.NewService(rbac.NewGormRepository(gdb), nil)
	policy, err := rbac.DefaultPolicy()
	require.NoError(t, err)
	_, err = rbacSvc.Sync(context.Background(), policy, rbac.SyncEnsure)
	require.NoError(t, err)

	f := &fixture{
		gdb:      gdb,
		repo:     NewGormRepository(gdb),
		rbac:     rbacSvc,
		notifier: &recordingNotifier{},
		metrics:  &countingRecorder{},
	}
	f.maker = f.addUser(t, "alice", shared.RoleMaker)
	f.otherMaker = f.addUser(t, "dave", shared.RoleMaker)
	f.checker = f.addUser(t, "bob", shared.RoleChecker)
	f.admin = f.addUser(t, "root", shared.RoleAdmin)

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	f.service = NewService(ServiceDeps{
		Repo:     f.repo,
		Gate:     rbac.NewGate(rbacSvc, nil),
		Notifier: f.notifier,
		Metrics:  f.metrics,
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	return f
}

func (f *fixture) addUser(t *testing.T, username, role string) int64 {
	t.Helper()
	var r db.RoleModel
	require.NoError(t, f.gdb.Where("name = ?", role).First(&r).Error)
	u := db.UserModel{Username: username, RoleID: r.ID, IsActive: true}
	require.NoError(t, f.gdb.Create(&u).Error)
	return u.ID
}

func (f *fixture) mustCreate(t *testing.T, makerID int64, field string) Request {
	t.Helper()
	req, err := f.service.Create(context.Background(), makerID, field)
	require.NoError(t, err)
	return req
}
