package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/platform/db"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
	_ "github.com/barq-desk/barq/testing"
)

type authEnv struct {
	gdb      *gorm.DB
	sessions *shared.SessionManager
	router   http.Handler
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	require.NoError(t, err)
	rbacSvc := rbac.NewService(rbac.NewGormRepository(gdb), nil)
	policy, err := rbac.DefaultPolicy()
	require.NoError(t, err)
	_, err = rbacSvc.Sync(context.Background(), policy, rbac.SyncEnsure)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(auth.NewGormRepository(gdb)), rbac.NewGate(rbacSvc, nil), sessions, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return &authEnv{gdb: gdb, sessions: sessions, router: withSession(sessions, r)}
}

// withSession loads the session before and commits it after next runs.
func withSession(sm *shared.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.Load(r.Context(), r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ctx := shared.ContextWithSession(r.Context(), sess)
		inner := httptest.NewRecorder()
		next.ServeHTTP(inner, r.WithContext(ctx))
		if err := sm.Commit(ctx, w, r, sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for k, v := range inner.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(inner.Code)
		_, _ = w.Write(inner.Body.Bytes())
	})
}

func (e *authEnv) addUser(t *testing.T, username, password, role string, active bool) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	var r db.RoleModel
	if err := e.gdb.Where("name = ?", role).First(&r).Error; err != nil {
		r = db.RoleModel{Name: role}
		require.NoError(t, e.gdb.Create(&r).Error)
	}
	u := db.UserModel{Username: username, PasswordHash: string(hash), RoleID: r.ID}
	require.NoError(t, e.gdb.Create(&u).Error)
	if !active {
		require.NoError(t, e.gdb.Model(&u).Update("is_active", false).Error)
	}
	return u.ID
}

func (e *authEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie, csrf string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if csrf != "" {
		req.Header.Set(shared.CSRFHeader, csrf)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

func TestSessionIssuesCSRFToken(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/session", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Authenticated bool   `json:"authenticated"`
		CSRFToken     string `json:"csrfToken"`
	}
	decode(t, rec, &body)
	assert.False(t, body.Authenticated)
	assert.NotEmpty(t, body.CSRFToken)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "alice", "correctpass", shared.RoleMaker, true)
	env.addUser(t, "olga", "correctpass", shared.RoleMaker, false)

	for name, body := range map[string]string{
		"wrong password": `{"username":"alice","password":"wrongpass"}`,
		"unknown user":   `{"username":"nobody","password":"correctpass"}`,
		"inactive":       `{"username":"olga","password":"correctpass"}`,
	} {
		rec := env.do(t, http.MethodPost, "/auth/login", body, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "Invalid username or password.", name)
	}
}

func TestLoginBlankCredentials(t *testing.T) {
	env := newAuthEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/login", `{"username":"   ","password":"x"}`, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username and password are required.")

	rec = env.do(t, http.MethodPost, "/auth/login", `not json`, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginMeLogout(t *testing.T) {
	env := newAuthEnv(t)
	id := env.addUser(t, "alice", "correctpass", shared.RoleMaker, true)

	first := env.do(t, http.MethodGet, "/auth/session", "", nil, "")
	anon := sessionCookie(t, first)

	rec := env.do(t, http.MethodPost, "/auth/login", `{"username":"  ALICE ","password":"correctpass"}`, anon, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
		Home      string `json:"home"`
		CSRFToken string `json:"csrfToken"`
	}
	decode(t, rec, &login)
	assert.Equal(t, id, login.User.ID)
	assert.Equal(t, "alice", login.User.Username)
	assert.Equal(t, shared.RoleMaker, login.User.Role)
	assert.Equal(t, "/dashboard/maker", login.Home)
	assert.NotEmpty(t, login.CSRFToken)

	authed := sessionCookie(t, rec)
	assert.NotEqual(t, anon.Value, authed.Value, "login must rotate the session id")

	var rows int64
	require.NoError(t, env.gdb.Model(&db.AuthSessionModel{}).Where("id = ?", authed.Value).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	me := env.do(t, http.MethodGet, "/auth/me", "", authed, "")
	require.Equal(t, http.StatusOK, me.Code)
	var meBody struct {
		Home        string   `json:"home"`
		Permissions []string `json:"permissions"`
	}
	decode(t, me, &meBody)
	assert.Equal(t, "/dashboard/maker", meBody.Home)
	assert.Contains(t, meBody.Permissions, shared.PermRequestCreate)
	assert.NotContains(t, meBody.Permissions, shared.PermRequestApprove)

	stale := env.do(t, http.MethodGet, "/auth/me", "", anon, "")
	assert.Equal(t, http.StatusUnauthorized, stale.Code)

	out := env.do(t, http.MethodPost, "/auth/logout", "", authed, login.CSRFToken)
	assert.Equal(t, http.StatusNoContent, out.Code)
	require.NoError(t, env.gdb.Model(&db.AuthSessionModel{}).Where("id = ?", authed.Value).Count(&rows).Error)
	assert.Zero(t, rows)

	after := env.do(t, http.MethodGet, "/auth/me", "", authed, "")
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestLoginUnknownRoleIsRefused(t *testing.T) {
	env := newAuthEnv(t)
	env.addUser(t, "ghost", "correctpass", "auditor", true)

	rec := env.do(t, http.MethodPost, "/auth/login", `{"username":"ghost","password":"correctpass"}`, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown role")

	me := env.do(t, http.MethodGet, "/auth/me", "", sessionCookie(t, rec), "")
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}
