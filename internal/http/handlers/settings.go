package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/settings"
	"github.com/gin-gonic/gin"
)

type SettingsStore interface {
	SettingsReader
	Update(ctx context.Context, req settings.UpdateRequest, updatedBy string) (settings.SystemSettings, error)
}

type SettingsHandler struct {
	repo SettingsStore
}

func NewSettingsHandler(repo SettingsStore) *SettingsHandler {
	return &SettingsHandler{repo: repo}
}

// GET /system-settings/
func (h *SettingsHandler) Get(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	s, err := h.repo.Get(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load settings")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, s)
}

// PUT /system-settings/
func (h *SettingsHandler) Update(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var req settings.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	s, err := h.repo.Update(cctx, req, caller.UserID)
	if err != nil {
		RespondInternal(ctx, "Could not update settings")
		return
	}

	ctx.JSON(http.StatusOK, s)
}
