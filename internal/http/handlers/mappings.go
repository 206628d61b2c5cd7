package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/domain/mapping"
	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/geocoder89/medportal/internal/jobs"
	"github.com/geocoder89/medportal/internal/utils"
	"github.com/gin-gonic/gin"
)

type MappingsStore interface {
	Create(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error)
	GetByID(ctx context.Context, id string) (mapping.Mapping, error)
	List(ctx context.Context, f mapping.ListFilter) ([]mapping.Mapping, int, error)
	Update(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error)
	Delete(ctx context.Context, id string) error
	CareTeamChecker
}

type PatientByID interface {
	GetByID(ctx context.Context, id string) (patient.Patient, error)
}

type DoctorByID interface {
	GetByID(ctx context.Context, id string) (doctor.Doctor, error)
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type MappingsHandlerDeps struct {
	Mappings MappingsStore
	Patients PatientByID
	Doctors  DoctorByID
	Jobs     JobEnqueuer
	Settings SettingsReader
}

type MappingsHandler struct {
	repo     MappingsStore
	patients PatientByID
	doctors  DoctorByID
	jobs     JobEnqueuer
	settings SettingsReader
}

func NewMappingsHandler(d MappingsHandlerDeps) *MappingsHandler {
	return &MappingsHandler{
		repo:     d.Mappings,
		patients: d.Patients,
		doctors:  d.Doctors,
		jobs:     d.Jobs,
		settings: d.Settings,
	}
}

func mappingScope(id middlewares.Identity) mapping.Scope {
	switch id.Role {
	case user.RolePatient:
		return mapping.Scope{PatientUserID: &id.UserID}
	case user.RoleDoctor:
		return mapping.Scope{DoctorUserID: &id.UserID}
	default:
		return mapping.Scope{}
	}
}

// GET /mappings/?page=&page_size=&search=&status=&patient_id=&doctor_id=
func (h *MappingsHandler) List(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	f := mapping.ListFilter{Scope: mappingScope(caller)}

	if !h.readFilters(ctx, &f) {
		return
	}

	h.respondPage(ctx, f)
}

// GET /mappings/patient/:patient_id/
func (h *MappingsHandler) ByPatient(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	patientID, ok := pathID(ctx, "patient_id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.patients.GetByID(cctx, patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			RespondNotFound(ctx, "Patient not found")
			return
		}
		RespondInternal(ctx, "Could not list mappings")
		return
	}

	allowed, err := canSeePatient(cctx, h.repo, caller, p)
	if err != nil {
		RespondInternal(ctx, "Could not list mappings")
		return
	}
	if !allowed {
		RespondForbidden(ctx, "forbidden", "You do not have access to this patient")
		return
	}

	f := mapping.ListFilter{}
	if !h.readFilters(ctx, &f) {
		return
	}
	f.PatientID = &patientID

	h.respondPage(ctx, f)
}

func (h *MappingsHandler) readFilters(ctx *gin.Context, f *mapping.ListFilter) bool {
	p, ok := parsePage(ctx)
	if !ok {
		return false
	}
	f.Limit, f.Offset = p.Limit(), p.Offset()
	f.Search = optionalString(ctx, "search")

	if s := optionalString(ctx, "status"); s != nil {
		st := mapping.Status(*s)
		if !st.IsValid() {
			RespondInvalidQuery(ctx, "status must be one of active, inactive, completed")
			return false
		}
		f.Status = &st
	}

	for key, dst := range map[string]**string{"patient_id": &f.PatientID, "doctor_id": &f.DoctorID} {
		v := optionalString(ctx, key)
		if v == nil {
			continue
		}
		id, ok := utils.CanonicalUUID(*v)
		if !ok {
			RespondInvalidQuery(ctx, key+" must be a valid UUID")
			return false
		}
		*dst = &id
	}
	return true
}

func (h *MappingsHandler) respondPage(ctx *gin.Context, f mapping.ListFilter) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, total, err := h.repo.List(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not list mappings")
		return
	}

	size := f.Limit
	RespondJSONWithETag(ctx, http.StatusOK, page.New(items, total, page.Params{Page: f.Offset/size + 1, Size: size}))
}

// GET /mappings/:id/
func (h *MappingsHandler) GetByID(ctx *gin.Context) {
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

	m, ok := h.load(ctx, cctx, caller, id)
	if !ok {
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, m)
}

// POST /mappings/
func (h *MappingsHandler) Create(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var req mapping.CreateMappingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, mapping.NewFromCreateRequest(req, &caller.UserID))
	if err != nil {
		switch {
		case errors.Is(err, mapping.ErrDuplicate):
			RespondConflict(ctx, "mapping_exists", "This patient is already mapped to this doctor.")
		case errors.Is(err, mapping.ErrUnknownFK):
			RespondError(ctx, http.StatusBadRequest, "unknown_reference", "Patient or doctor does not exist.", nil)
		default:
			RespondInternal(ctx, "Could not create mapping")
		}
		return
	}

	h.notifyAssigned(cctx, ctx, created, caller.UserID)

	ctx.JSON(http.StatusCreated, created)
}

// notifyAssigned queues the doctor notice. The mapping is already stored, so a
// queue failure is logged rather than surfaced.
func (h *MappingsHandler) notifyAssigned(cctx context.Context, ctx *gin.Context, m mapping.Mapping, actorID string) {
	if h.jobs == nil {
		return
	}
	if h.settings != nil {
		if s, err := h.settings.Get(cctx); err == nil && !s.EmailNotifications {
			return
		}
	}

	req, err := jobs.NewCreateRequest(jobs.JobNotifyMappingAssign, jobs.MappingAssignedPayload{
		MappingID:   m.ID,
		ActorID:     actorID,
		RequestedAt: time.Now().UTC(),
		RequestID:   requestIDFrom(ctx),
	}, "mapping:assigned:"+m.ID, &actorID)
	if err == nil {
		_, err = h.jobs.Enqueue(cctx, req)
	}
	if err != nil {
		slog.Default().WarnContext(cctx, "mapping_notification_enqueue_failed", "mapping_id", m.ID, "err", err)
	}
}

// PUT /mappings/:id/
func (h *MappingsHandler) Update(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req mapping.UpdateMappingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	m, ok := h.load(ctx, cctx, caller, id)
	if !ok {
		return
	}

	m.Apply(req)
	m.UpdatedAt = time.Now().UTC()

	updated, err := h.repo.Update(cctx, m)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			RespondNotFound(ctx, "Mapping not found")
			return
		}
		RespondInternal(ctx, "Could not update mapping")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// DELETE /mappings/:id/
func (h *MappingsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			RespondNotFound(ctx, "Mapping not found")
			return
		}
		RespondInternal(ctx, "Could not delete mapping")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// load fetches a mapping the caller is a party to. Others get 404.
func (h *MappingsHandler) load(ctx *gin.Context, cctx context.Context, caller middlewares.Identity, id string) (mapping.Mapping, bool) {
	m, err := h.repo.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			RespondNotFound(ctx, "Mapping not found")
			return mapping.Mapping{}, false
		}
		RespondInternal(ctx, "Could not fetch mapping")
		return mapping.Mapping{}, false
	}

	var owner *string
	switch caller.Role {
	case user.RoleAdmin:
		return m, true
	case user.RolePatient:
		p, err := h.patients.GetByID(cctx, m.PatientID)
		if err == nil {
			owner = p.UserID
		}
	case user.RoleDoctor:
		d, err := h.doctors.GetByID(cctx, m.DoctorID)
		if err == nil {
			owner = d.UserID
		}
	}

	if owner == nil || *owner != caller.UserID {
		RespondNotFound(ctx, "Mapping not found")
		return mapping.Mapping{}, false
	}
	return m, true
}
