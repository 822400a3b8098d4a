package users

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

type usersEnv struct {
	gdb     *gorm.DB
	service *Service
	router  http.Handler
	admin   int64
	maker   int64
}

func newUsersEnv(t *testing.T) *usersEnv {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	rbacSvc := rbac.NewService(rbac.NewGormRepository(gdb), nil)
	policy, err := rbac.DefaultPolicy()
	require.NoError(t, err)
	_, err = rbacSvc.Sync(context.Background(), policy, rbac.SyncEnsure)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewGormRepository(gdb), rbacSvc, logger)
	svc.cost = bcrypt.MinCost
	env := &usersEnv{gdb: gdb, service: svc}

	admin, err := svc.CreateUser(context.Background(), 0, CreateInput{Username: "root", Password: "rootroot", Role: shared.RoleAdmin})
	require.NoError(t, err)
	maker, err := svc.CreateUser(context.Background(), 0, CreateInput{Username: "alice", Password: "alicealice", Role: shared.RoleMaker})
	require.NoError(t, err)
	env.admin, env.maker = admin.ID, maker.ID

	handler := NewHandler(logger, svc, rbac.Middleware{Gate: rbac.NewGate(rbacSvc, nil), Logger: logger})
	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)
	env.router = r
	return env
}

func (e *usersEnv) do(userID int64, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/users/", strings.NewReader(body))
	sess := &shared.Session{ID: "s"}
	sess.SetUser(userID)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateUserHashesAndAudits(t *testing.T) {
	env := newUsersEnv(t)

	user, err := env.service.CreateUser(context.Background(), env.admin, CreateInput{Username: "  Bob ", Password: "checker-pass", Role: "Checker"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, shared.RoleChecker, user.Role)

	var row db.UserModel
	require.NoError(t, env.gdb.First(&row, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte("checker-pass")))

	var audits []db.AuditLogModel
	require.NoError(t, env.gdb.Where("action = ? AND actor_id = ?", "user.create", env.admin).Find(&audits).Error)
	require.Len(t, audits, 1)
	assert.Contains(t, audits[0].Meta, `"role":"checker"`)
}

func TestCreateUserRejectsDuplicatesAndUnknownRoles(t *testing.T) {
	env := newUsersEnv(t)

	_, err := env.service.CreateUser(context.Background(), env.admin, CreateInput{Username: "ALICE", Password: "whatever1", Role: shared.RoleMaker})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.service.CreateUser(context.Background(), env.admin, CreateInput{Username: "eve", Password: "whatever1", Role: "auditor"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestUsersHandler(t *testing.T) {
	env := newUsersEnv(t)

	rec := env.do(env.admin, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "alice", listed[0].Username)
	assert.Equal(t, "root", listed[1].Username)

	assert.Equal(t, http.StatusForbidden, env.do(env.maker, http.MethodGet, "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(env.maker, http.MethodPost, `{"username":"x1x","password":"12345678","role":"maker"}`).Code)

	rec = env.do(env.admin, http.MethodPost, `{"username":"carol","password":"carolcarol","role":"checker"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Location"))

	rec = env.do(env.admin, http.MethodPost, `{"username":"carol","password":"carolcarol","role":"checker"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(env.admin, http.MethodPost, `{"username":"dan","password":"short","role":"checker"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password must be 8 to 72 characters.")
}
