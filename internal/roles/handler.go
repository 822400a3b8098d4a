package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/barq-desk/barq/internal/platform/httpx"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/shared"
)

var (
	errInvalidRoleID      = httpx.NewError(httpx.ErrValidation, "Invalid role id.")
	errInvalidPermissions = httpx.NewError(httpx.ErrValidation, "Permissions must be a list of action strings.")
)

// Handler manages role management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRoleRead))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRoleRead, shared.PermRoleAssignPermission))
		r.Put("/{id}/permissions", h.assignPermissions)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.RespondError(w, errInvalidRoleID)
		return
	}
	var in AssignInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, errInvalidPermissions)
		return
	}
	actorID, _ := shared.CurrentUserID(r.Context())
	row, err := h.service.AssignPermissions(r.Context(), actorID, roleID, in)
	if err != nil {
		if httpx.StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("assign permissions failed", slog.Int64("role_id", roleID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}
