package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
	"github.com/barq-desk/barq/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	gate           *rbac.Gate
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *rbac.Gate, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		gate:           gate,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.showSession)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.showMe)
}

type loginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrfToken"`
}

type loginView struct {
	User      rbac.Identity `json:"user"`
	Home      string        `json:"home"`
	CSRFToken string        `json:"csrfToken"`
}

type meView struct {
	User        rbac.Identity      `json:"user"`
	Permissions rbac.PermissionSet `json:"permissions"`
	Home        string             `json:"home"`
	Menu        []view.MenuItem    `json:"menu"`
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionView{Authenticated: sess.User() != 0, CSRFToken: token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	form.Username = NormalizeUsername(form.Username)
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, ErrCredentialsRequired)
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Info("login rejected", slog.String("username", form.Username))
			httpx.RespondError(w, ErrBadCredentials)
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	home, err := view.HomePath(user.RoleName)
	if err != nil {
		h.logger.Warn("login for unknown role", slog.Int64("user_id", user.ID), slog.String("role", user.RoleName))
		httpx.RespondError(w, err)
		return
	}

	h.sessionManager.Rotate(sess)
	sess.SetUser(user.ID)
	sess.Delete(shared.CSRFSessionKey)
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, loginView{
		User:      rbac.Identity{UserID: user.ID, Username: user.Username, RoleID: user.RoleID, RoleName: user.RoleName},
		Home:      home,
		CSRFToken: token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	subject, err := h.gate.Subject(r.Context(), userID)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		h.logger.Error("resolve subject", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	shell, err := view.BuildShell(subject.Identity, subject.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, meView{
		User:        subject.Identity,
		Permissions: subject.Permissions,
		Home:        shell.Home,
		Menu:        shell.Menu,
	})
}
