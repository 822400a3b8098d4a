package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barq-desk/barq/internal/app"
	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/jobs"
)

type stubJobs struct {
	triggered []string
	queues    []jobs.QueueHealth
	closed    bool
}

func (s *stubJobs) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	task, err := jobs.TaskByName(name)
	if err != nil {
		return nil, err
	}
	s.triggered = append(s.triggered, name)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueMaintenance}, nil
}

func (s *stubJobs) Inspect(context.Context) ([]jobs.QueueHealth, error) {
	return s.queues, nil
}

func (s *stubJobs) Close() error {
	s.closed = true
	return nil
}

func testDeps(t *testing.T, queue *stubJobs) Deps {
	t.Helper()
	cfg := &app.Config{
		StoreDriver:  app.StoreSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "barq.db"),
		RBACSyncMode: "ensure",
	}
	return Deps{
		Config: func() (*app.Config, error) { return cfg, nil },
		Stores: func(_ context.Context, cfg *app.Config, _ *slog.Logger) (*app.Stores, error) {
			gdb, err := db.OpenSQLite(cfg.SQLitePath, false)
			if err != nil {
				return nil, err
			}
			return app.SQLiteStores(gdb), nil
		},
		Migrate: migrate,
		Jobs:    func(*app.Config) JobsAPI { return queue },
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(deps, "test")
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateSQLite(t *testing.T) {
	out, err := run(t, testDeps(t, &stubJobs{}), "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema applied (sqlite)\n", out)
}

func TestPolicySyncReportsCounts(t *testing.T) {
	deps := testDeps(t, &stubJobs{})
	out, err := run(t, deps, "policy", "sync", "-o", "json")
	require.NoError(t, err)

	var res syncResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "ensure", res.Mode)
	assert.Equal(t, 3, res.Roles)
	assert.Positive(t, res.Permissions)
	assert.Positive(t, res.Granted)

	// A second ensure run finds nothing to grant.
	out, err = run(t, deps, "policy", "sync", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Zero(t, res.Granted)

	out, err = run(t, deps, "policy", "sync", "--replace")
	require.NoError(t, err)
	assert.Contains(t, out, "replace")
}

func TestUserCreateAndAuthzCheck(t *testing.T) {
	deps := testDeps(t, &stubJobs{})
	_, err := run(t, deps, "policy", "sync")
	require.NoError(t, err)

	out, err := run(t, deps, "user", "create", "--username", " Mia ", "--password", "password1", "--role", "maker", "-o", "json")
	require.NoError(t, err)
	var created struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "mia", created.Username)
	assert.Equal(t, "maker", created.Role)
	id := strconv.FormatInt(created.ID, 10)

	out, err = run(t, deps, "authz", "check", "--user", id, "request:create")
	require.NoError(t, err)
	assert.Contains(t, out, "true")

	_, err = run(t, deps, "authz", "check", "--user", id, "request:approve")
	assert.ErrorIs(t, err, ErrDenied)

	_, err = run(t, deps, "authz", "check", "--all", "--user", id, "request:create", "request:approve")
	assert.ErrorIs(t, err, ErrDenied)

	_, err = run(t, deps, "user", "create", "--username", "mia", "--password", "password1", "--role", "maker")
	assert.Error(t, err)
}

func TestUserCreateValidates(t *testing.T) {
	deps := testDeps(t, &stubJobs{})
	_, err := run(t, deps, "user", "create", "--username", "mi", "--password", "password1", "--role", "maker")
	assert.ErrorContains(t, err, "invalid user")

	_, err = run(t, deps, "user", "create", "--username", "mia", "--password", "password1", "--role", "auditor")
	assert.Error(t, err)
}

func TestJobsCommands(t *testing.T) {
	queue := &stubJobs{queues: []jobs.QueueHealth{{Queue: jobs.QueueDefault, Pending: 2}, {Queue: jobs.QueueMaintenance}}}
	deps := testDeps(t, queue)

	out, err := run(t, deps, "jobs", "trigger", "purge-sessions")
	require.NoError(t, err)
	assert.Contains(t, out, jobs.TaskPurgeSessions)
	assert.Equal(t, []string{"purge-sessions"}, queue.triggered)
	assert.True(t, queue.closed)

	_, err = run(t, deps, "jobs", "trigger", "reindex")
	assert.Error(t, err)

	out, err = run(t, deps, "jobs", "inspect", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "queue: default")
	assert.Contains(t, out, "pending: 2")
}

func TestRejectsUnknownOutput(t *testing.T) {
	_, err := run(t, testDeps(t, &stubJobs{}), "migrate", "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output")
}

func TestConfigErrorsSurface(t *testing.T) {
	deps := testDeps(t, &stubJobs{})
	deps.Config = func() (*app.Config, error) { return nil, errors.New("boom") }
	_, err := run(t, deps, "migrate")
	assert.ErrorContains(t, err, "boom")
}
