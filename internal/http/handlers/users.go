package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UsersStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	repo UsersStore
}

func NewUsersHandler(repo UsersStore) *UsersHandler {
	return &UsersHandler{repo: repo}
}

// GET /users/?page=&page_size=&search=&role=&is_active=
func (h *UsersHandler) List(ctx *gin.Context) {
	p, ok := parsePage(ctx)
	if !ok {
		return
	}

	f := user.ListFilter{
		Search: optionalString(ctx, "search"),
		Limit:  p.Limit(),
		Offset: p.Offset(),
	}

	if r := optionalString(ctx, "role"); r != nil {
		role := user.Role(*r)
		if !role.IsValid() {
			RespondInvalidQuery(ctx, "role must be one of patient, doctor, admin")
			return
		}
		f.Role = &role
	}

	if f.IsActive, ok = optionalBool(ctx, "is_active"); !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, page.New(items, total, p))
}

// GET /users/:id/
func (h *UsersHandler) GetByID(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondError(ctx, err, "Could not fetch user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

// PUT /users/:id/
func (h *UsersHandler) Update(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req user.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// admins cannot lock themselves out
	if id == caller.UserID {
		if (req.IsActive != nil && !*req.IsActive) || (req.Role != nil && *req.Role != user.RoleAdmin) {
			RespondError(ctx, http.StatusBadRequest, "self_lockout", "You cannot deactivate or demote your own account.", nil)
			return
		}
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.repo.Update(cctx, id, req)
	if err != nil {
		h.respondError(ctx, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// DELETE /users/:id/
func (h *UsersHandler) Delete(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if id == caller.UserID {
		RespondError(ctx, http.StatusBadRequest, "self_lockout", "You cannot delete your own account.", nil)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondError(ctx, err, "Could not delete user")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *UsersHandler) respondError(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	default:
		RespondInternal(ctx, msg)
	}
}
