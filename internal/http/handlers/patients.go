package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type PatientsStore interface {
	Create(ctx context.Context, p patient.Patient) (patient.Patient, error)
	GetByID(ctx context.Context, id string) (patient.Patient, error)
	List(ctx context.Context, f patient.ListFilter) ([]patient.Patient, int, error)
	Update(ctx context.Context, p patient.Patient) (patient.Patient, error)
	Delete(ctx context.Context, id string) error
}

// CareTeamChecker answers whether a doctor is mapped to a patient.
type CareTeamChecker interface {
	DoctorHasPatient(ctx context.Context, doctorUserID, patientID string) (bool, error)
}

type PatientsHandler struct {
	repo     PatientsStore
	careTeam CareTeamChecker
}

func NewPatientsHandler(repo PatientsStore, careTeam CareTeamChecker) *PatientsHandler {
	return &PatientsHandler{repo: repo, careTeam: careTeam}
}

// patientScope narrows what a caller may see: admins everything, doctors the
// patients mapped to them, patients their own record.
func patientScope(id middlewares.Identity) patient.Scope {
	switch id.Role {
	case user.RolePatient:
		return patient.Scope{UserID: &id.UserID}
	case user.RoleDoctor:
		return patient.Scope{DoctorUserID: &id.UserID}
	default:
		return patient.Scope{}
	}
}

// GET /patients/?page=1&page_size=20&search=&gender=
func (h *PatientsHandler) List(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	h.list(ctx, patientScope(caller))
}

// GET /doctor/my-patients/
func (h *PatientsHandler) MyPatients(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	h.list(ctx, patient.Scope{DoctorUserID: &caller.UserID})
}

func (h *PatientsHandler) list(ctx *gin.Context, scope patient.Scope) {
	p, ok := parsePage(ctx)
	if !ok {
		return
	}

	gender := optionalString(ctx, "gender")
	if gender != nil {
		switch *gender {
		case "male", "female", "other":
		default:
			RespondInvalidQuery(ctx, "gender must be one of male, female, other")
			return
		}
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, patient.ListFilter{
		Search: optionalString(ctx, "search"),
		Gender: gender,
		Scope:  scope,
		Limit:  p.Limit(),
		Offset: p.Offset(),
	})
	if err != nil {
		RespondInternal(ctx, "Could not list patients")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, page.New(items, total, p))
}

// POST /patients/
func (h *PatientsHandler) Create(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var req patient.CreatePatientRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, patient.NewFromCreateRequest(req, nil, &caller.UserID))
	if err != nil {
		RespondInternal(ctx, "Could not create patient")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// GET /patients/:id/
func (h *PatientsHandler) GetByID(ctx *gin.Context) {
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

	p, ok := h.load(ctx, cctx, caller, id)
	if !ok {
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// PUT /patients/:id/
func (h *PatientsHandler) Update(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req patient.UpdatePatientRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, ok := h.load(ctx, cctx, caller, id)
	if !ok {
		return
	}

	p.Apply(req)
	p.UpdatedAt = time.Now().UTC()

	updated, err := h.repo.Update(cctx, p)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}
		RespondInternal(ctx, "Could not update patient")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DELETE /patients/:id/
func (h *PatientsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}
		RespondInternal(ctx, "Could not delete patient")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// load fetches the patient and applies the caller's scope. Records outside the
// scope are reported as not found.
func (h *PatientsHandler) load(ctx *gin.Context, cctx context.Context, caller middlewares.Identity, id string) (patient.Patient, bool) {
	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return patient.Patient{}, false
		}
		RespondInternal(ctx, "Could not fetch patient")
		return patient.Patient{}, false
	}

	allowed, err := canSeePatient(cctx, h.careTeam, caller, p)
	if err != nil {
		RespondInternal(ctx, "Could not fetch patient")
		return patient.Patient{}, false
	}
	if !allowed {
		RespondNotFound(ctx, "Patient not found")
		return patient.Patient{}, false
	}
	return p, true
}

func canSeePatient(ctx context.Context, careTeam CareTeamChecker, caller middlewares.Identity, p patient.Patient) (bool, error) {
	switch caller.Role {
	case user.RoleAdmin:
		return true, nil
	case user.RolePatient:
		return p.UserID != nil && *p.UserID == caller.UserID, nil
	case user.RoleDoctor:
		if careTeam == nil {
			return false, nil
		}
		return careTeam.DoctorHasPatient(ctx, caller.UserID, p.ID)
	default:
		return false, nil
	}
}
