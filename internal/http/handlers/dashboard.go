package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/cache"
	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/stats"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/utils"
	"github.com/gin-gonic/gin"
)

const statsCacheTTL = 30 * time.Second

type StatsReader interface {
	Admin(ctx context.Context) (stats.AdminStats, error)
	Doctor(ctx context.Context, doctorUserID string) (stats.DoctorStats, error)
	Patient(ctx context.Context, patientUserID string) (stats.PatientStats, error)
	Report(ctx context.Context, now time.Time) (stats.ReportSummary, error)
}

type DashboardHandler struct {
	repo  StatsReader
	cache cache.Store
	ttl   time.Duration
}

func NewDashboardHandler(repo StatsReader, store cache.Store) *DashboardHandler {
	return &DashboardHandler{repo: repo, cache: store, ttl: statsCacheTTL}
}

// GET /dashboard/stats/
func (h *DashboardHandler) Stats(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	key := utils.BuildDashboardCacheKey(string(caller.Role), caller.UserID)

	h.serveCached(ctx, key, func(cctx context.Context) (any, error) {
		switch caller.Role {
		case user.RoleAdmin:
			return h.repo.Admin(cctx)
		case user.RoleDoctor:
			return h.repo.Doctor(cctx, caller.UserID)
		default:
			return h.repo.Patient(cctx, caller.UserID)
		}
	})
}

// GET /reports/summary/
func (h *DashboardHandler) Report(ctx *gin.Context) {
	h.serveCached(ctx, utils.ReportCacheKey, func(cctx context.Context) (any, error) {
		return h.repo.Report(cctx, time.Now().UTC())
	})
}

// serveCached answers from the cache when it can and fills it otherwise.
// Cache errors are logged and the request falls through to the database.
func (h *DashboardHandler) serveCached(ctx *gin.Context, key string, load func(context.Context) (any, error)) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if h.cache != nil {
		b, ok, err := h.cache.Get(cctx, key)
		if err != nil {
			slog.Default().WarnContext(cctx, "stats_cache_get_failed", "key", key, "err", err)
		}
		if ok {
			ctx.Header("X-Cache", "HIT")
			RespondJSONWithETag(ctx, http.StatusOK, json.RawMessage(b))
			return
		}
	}

	v, err := load(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load statistics")
		return
	}

	if h.cache != nil {
		if b, err := json.Marshal(v); err == nil {
			if err := h.cache.Set(cctx, key, b, h.ttl); err != nil {
				slog.Default().WarnContext(cctx, "stats_cache_set_failed", "key", key, "err", err)
			}
		}
	}

	ctx.Header("X-Cache", "MISS")
	RespondJSONWithETag(ctx, http.StatusOK, v)
}
