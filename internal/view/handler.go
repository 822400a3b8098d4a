package view

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

// pageOwners maps dashboard pages to the only role allowed to open them.
var pageOwners = map[string]string{
	"maker":       shared.RoleMaker,
	"checker":     shared.RoleChecker,
	"admin":       shared.RoleAdmin,
	"users":       shared.RoleAdmin,
	"permissions": shared.RoleAdmin,
}

// Page is the payload of a dashboard page route.
type Page struct {
	Shell
	Path string `json:"path"`
}

// Handler serves the dashboard page routes.
type Handler struct {
	logger *slog.Logger
	gate   *rbac.Gate
}

// NewHandler builds the dashboard handler.
func NewHandler(logger *slog.Logger, gate *rbac.Gate) *Handler {
	return &Handler{logger: logger, gate: gate}
}

// MountRoutes registers /dashboard routes. Callers guard them with a
// session check that redirects anonymous visitors.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/{page}", h.page)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	shell, ok := h.shell(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, shell.Home, http.StatusSeeOther)
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	owner, known := pageOwners[name]
	if !known {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	shell, ok := h.shell(w, r)
	if !ok {
		return
	}
	if shell.User.RoleName != owner {
		target := shell.Home
		if _, rolePage := roleHomes[name]; !rolePage {
			target = "/dashboard"
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, Page{Shell: shell, Path: r.URL.Path})
}

var roleHomes = map[string]struct{}{
	"maker":   {},
	"checker": {},
	"admin":   {},
}

func (h *Handler) shell(w http.ResponseWriter, r *http.Request) (Shell, bool) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return Shell{}, false
	}
	subject, err := h.gate.Subject(r.Context(), userID)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return Shell{}, false
		}
		h.logger.Error("dashboard subject", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return Shell{}, false
	}
	shell, err := BuildShell(subject.Identity, subject.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return Shell{}, false
	}
	return shell, true
}
