package requests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/shared"
)

func newTestRouter(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHandler(discardLogger(), f.service, shared.NewIdempotencyStore(client, time.Hour))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{ID: "test"}
			if raw := req.Header.Get("X-Test-User"); raw != "" {
				id, _ := strconv.ParseInt(raw, 10, 64)
				sess.SetUser(id)
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/requests", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, user int64, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("X-Test-User", strconv.FormatInt(user, 10))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func problemDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.Detail
}

func TestHandlerCreateAndSerialize(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(t, f)

	rec := do(t, h, http.MethodPost, "/requests", f.maker, `{"field":"Missing signature"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Missing signature", body["field"])
	assert.Equal(t, "pending", body["status"])
	assert.Contains(t, body, "shacker")
	assert.Nil(t, body["shacker"])
	maker := body["maker"].(map[string]any)
	assert.Equal(t, "alice", maker["username"])
	_, err := time.Parse(time.RFC3339, body["createdAt"].(string))
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.Header().Get("Location"))
}

func TestHandlerStatusCodes(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(t, f)
	req := f.mustCreate(t, f.maker, "x")
	path := fmt.Sprintf("/requests/%d", req.ID)
	oversized := `{"field":"` + strings.Repeat("a", 4001) + `"}`

	cases := []struct {
		name   string
		method string
		path   string
		user   int64
		body   string
		status int
		detail string
	}{
		{"list anonymous", http.MethodGet, "/requests", 0, "", http.StatusUnauthorized, "Unauthorized"},
		{"create anonymous", http.MethodPost, "/requests", 0, `{"field":"x"}`, http.StatusUnauthorized, ""},
		{"create blank", http.MethodPost, "/requests", f.maker, `{"field":"  "}`, http.StatusBadRequest, "Field is required."},
		{"create bad json", http.MethodPost, "/requests", f.maker, `{`, http.StatusBadRequest, "Field is required."},
		{"create checker", http.MethodPost, "/requests", f.checker, `{"field":"x"}`, http.StatusForbidden, "Only makers can create requests."},
		{"create oversized", http.MethodPost, "/requests", f.maker, oversized, http.StatusBadRequest, "Field must be at most 4000 characters."},
		{"create oversized checker", http.MethodPost, "/requests", f.checker, oversized, http.StatusForbidden, "Only makers can create requests."},
		{"decide bad id", http.MethodPatch, "/requests/abc", f.checker, `{"action":"approve"}`, http.StatusBadRequest, "Invalid request id"},
		{"decide bad action", http.MethodPatch, path, f.checker, `{"action":"reopen"}`, http.StatusBadRequest, "Action must be approve or reject."},
		{"decide maker", http.MethodPatch, path, f.maker, `{"action":"approve"}`, http.StatusForbidden, "Only checkers can update requests."},
		{"decide missing", http.MethodPatch, "/requests/999999", f.checker, `{"action":"approve"}`, http.StatusNotFound, "Request not found"},
		{"decide anonymous", http.MethodPatch, path, 0, `{"action":"approve"}`, http.StatusUnauthorized, ""},
		{"show other maker", http.MethodGet, path, f.otherMaker, "", http.StatusNotFound, "Request not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.detail != "" {
				assert.Equal(t, tc.detail, problemDetail(t, rec))
			}
		})
	}
}

func TestHandlerDecideFlow(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(t, f)
	req := f.mustCreate(t, f.maker, "x")
	path := fmt.Sprintf("/requests/%d", req.ID)

	rec := do(t, h, http.MethodPatch, path, f.checker, `{"action":"approve"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var decided Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decided))
	assert.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.Checker)
	assert.Equal(t, "bob", decided.Checker.Username)

	rec = do(t, h, http.MethodPatch, path, f.checker, `{"action":"reject"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, path+"/history", f.maker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []shared.ApprovalLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)
}

func TestHandlerListPaginates(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(t, f)
	for i := 0; i < 5; i++ {
		f.mustCreate(t, f.maker, fmt.Sprintf("r%d", i))
	}

	rec := do(t, h, http.MethodGet, "/requests", f.checker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 5)
	assert.Empty(t, rec.Header().Get("X-Total-Count"))

	rec = do(t, h, http.MethodGet, "/requests?page=1&per_page=2", f.checker, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page []Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page, 2)
	assert.Equal(t, "5", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, "3", rec.Header().Get("X-Total-Pages"))
}

func TestHandlerIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	h := newTestRouter(t, f)

	rec := do(t, h, http.MethodPost, "/requests", f.maker, `{"field":"once"}`, IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/requests", f.maker, `{"field":"once"}`, IdempotencyKeyHeader, "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A failed attempt does not burn the key.
	rec = do(t, h, http.MethodPost, "/requests", f.maker, `{"field":" "}`, IdempotencyKeyHeader, "k-2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodPost, "/requests", f.maker, `{"field":"retry"}`, IdempotencyKeyHeader, "k-2")
	assert.Equal(t, http.StatusCreated, rec.Code)

	list, err := f.service.List(context.Background(), f.maker, shared.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Requests, 2)
}
