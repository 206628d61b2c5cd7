package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/geocoder89/medportal/internal/utils"
	"github.com/gin-gonic/gin"
)

type AdminJobsRepo interface {
	ListCursor(ctx context.Context, status *job.Status, limit int, cursor *utils.Cursor) (items []job.Job, nextCursor *string, err error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	Retry(ctx context.Context, id string) error
	RetryManyFailed(ctx context.Context, limit int) (int64, error)
}

type AdminJobsHandler struct {
	repo AdminJobsRepo
}

func NewAdminJobsHandler(repo AdminJobsRepo) *AdminJobsHandler {
	return &AdminJobsHandler{
		repo: repo,
	}
}

// GET /admin/jobs/?status=failed&limit=50&cursor=

func (h *AdminJobsHandler) List(ctx *gin.Context) {
	limit := parseIntDefault(ctx.Query("limit"), 20)
	if limit < 1 || limit > 100 {
		RespondInvalidQuery(ctx, "limit must be between 1 and 100")
		return
	}

	var statusPtr *job.Status
	if s := ctx.Query("status"); s != "" {
		st := job.Status(s)
		if !st.IsValid() {
			RespondInvalidQuery(ctx, "status must be one of pending, processing, done, failed")
			return
		}
		statusPtr = &st
	}

	var cursor *utils.Cursor
	if raw := ctx.Query("cursor"); raw != "" {
		cur, err := utils.DecodeCursor(raw)
		if err != nil {
			RespondInvalidQuery(ctx, "cursor is invalid")
			return
		}
		cursor = &cur
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, next, err := h.repo.ListCursor(cctx, statusPtr, limit, cursor)
	if err != nil {
		RespondInternal(ctx, "Could not list jobs")
		return
	}
	if items == nil {
		items = []job.Job{}
	}

	resp := gin.H{
		"limit":       limit,
		"count":       len(items),
		"items":       items,
		"has_more":    next != nil,
		"next_cursor": next,
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// GET /admin/jobs/:id/

func (h *AdminJobsHandler) GetByID(ctx *gin.Context) {
	ctx.Set(middlewares.CtxJobID, ctx.Param("id"))

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	j, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}

		RespondInternal(ctx, "Could not fetch job")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, j)
}

// POST /admin/jobs/:id/retry/
func (h *AdminJobsHandler) Retry(ctx *gin.Context) {
	ctx.Set(middlewares.CtxJobID, ctx.Param("id"))

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	err := h.repo.Retry(cctx, id)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			RespondNotFound(ctx, "Job not found")
		case errors.Is(err, job.ErrJobNotFailed):
			RespondConflict(ctx, "job_not_failed", "Only failed jobs can be retried")
		default:
			RespondInternal(ctx, "Could not retry job")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"job_id": id,
		"status": job.StatusPending,
	})
}

// POST /admin/jobs/retry-failed/?limit=50

func (h *AdminJobsHandler) RetryFailed(ctx *gin.Context) {
	limit := 50

	if limitStr := ctx.Query("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			RespondInvalidQuery(ctx, "limit must be a number")
			return
		}
		limit = n
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	n, err := h.repo.RetryManyFailed(cctx, limit)
	if err != nil {
		RespondInternal(ctx, "Could not requeue failed jobs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"requeued": n,
	})
}
