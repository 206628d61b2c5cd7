package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type DoctorsStore interface {
	Create(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error)
	GetByID(ctx context.Context, id string) (doctor.Doctor, error)
	List(ctx context.Context, f doctor.ListFilter) ([]doctor.Doctor, int, error)
	Update(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error)
	SetApproval(ctx context.Context, id string, approved bool) (doctor.Doctor, error)
	Delete(ctx context.Context, id string) error
}

type DoctorsHandler struct {
	repo DoctorsStore
}

func NewDoctorsHandler(repo DoctorsStore) *DoctorsHandler {
	return &DoctorsHandler{repo: repo}
}

// GET /doctors/?page=1&page_size=20&search=&specialization=&approved=
func (h *DoctorsHandler) List(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	p, ok := parsePage(ctx)
	if !ok {
		return
	}

	approved, ok := optionalBool(ctx, "approved")
	if !ok {
		return
	}

	// only admins can see doctors still waiting for approval
	if !caller.Is(user.RoleAdmin) {
		yes := true
		approved = &yes
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, doctor.ListFilter{
		Search:         optionalString(ctx, "search"),
		Specialization: optionalString(ctx, "specialization"),
		Approved:       approved,
		Limit:          p.Limit(),
		Offset:         p.Offset(),
	})
	if err != nil {
		RespondInternal(ctx, "Could not list doctors")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, page.New(items, total, p))
}

// GET /doctors/:id/
func (h *DoctorsHandler) GetByID(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	d, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondLookupError(ctx, err, "Could not fetch doctor")
		return
	}

	owner := d.UserID != nil && *d.UserID == caller.UserID
	if !d.IsApproved && !owner && !caller.Is(user.RoleAdmin) {
		RespondNotFound(ctx, "Doctor not found")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, d)
}

// POST /doctors/
func (h *DoctorsHandler) Create(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var req doctor.CreateDoctorRequest
	if !BindJSON(ctx, &req) {
		return
	}

	d := doctor.NewFromCreateRequest(req, nil, &caller.UserID)
	if len(d.Specializations) == 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field: "specializations", Rule: "required", Message: doctor.ErrNoSpecialities.Error(),
		}}})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, d)
	if err != nil {
		if errors.Is(err, doctor.ErrDuplicate) {
			RespondConflict(ctx, "doctor_exists", "A doctor with this email or license number already exists.")
			return
		}
		RespondInternal(ctx, "Could not create doctor")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// PUT /doctors/:id/
func (h *DoctorsHandler) Update(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req doctor.UpdateDoctorRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	d, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondLookupError(ctx, err, "Could not update doctor")
		return
	}

	if !caller.Is(user.RoleAdmin) && (d.UserID == nil || *d.UserID != caller.UserID) {
		RespondForbidden(ctx, "forbidden", "You can only edit your own profile")
		return
	}

	d.Apply(req)
	if len(d.Specializations) == 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field: "specializations", Rule: "required", Message: doctor.ErrNoSpecialities.Error(),
		}}})
		return
	}
	d.UpdatedAt = time.Now().UTC()

	updated, err := h.repo.Update(cctx, d)
	if err != nil {
		if errors.Is(err, doctor.ErrDuplicate) {
			RespondConflict(ctx, "doctor_exists", "A doctor with this email or license number already exists.")
			return
		}
		h.respondLookupError(ctx, err, "Could not update doctor")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// PATCH /doctors/:id/approval/
func (h *DoctorsHandler) SetApproval(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req doctor.ApprovalRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	d, err := h.repo.SetApproval(cctx, id, *req.IsApproved)
	if err != nil {
		h.respondLookupError(ctx, err, "Could not update approval")
		return
	}

	ctx.JSON(http.StatusOK, d)
}

// DELETE /doctors/:id/
func (h *DoctorsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondLookupError(ctx, err, "Could not delete doctor")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *DoctorsHandler) respondLookupError(ctx *gin.Context, err error, msg string) {
	if errors.Is(err, doctor.ErrNotFound) {
		RespondNotFound(ctx, "Doctor not found")
		return
	}
	RespondInternal(ctx, msg)
}
