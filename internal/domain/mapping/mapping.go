package mapping

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusCompleted:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound  = errors.New("mapping not found")
	ErrDuplicate = errors.New("patient is already mapped to this doctor")
	ErrUnknownFK = errors.New("patient or doctor does not exist")
)

type Mapping struct {
	ID                    string    `json:"id"`
	PatientID             string    `json:"patient_id"`
	PatientName           string    `json:"patient_name"`
	DoctorID              string    `json:"doctor_id"`
	DoctorName            string    `json:"doctor_name"`
	DoctorSpecializations []string  `json:"doctor_specializations"`
	Status                Status    `json:"status"`
	Symptoms              []string  `json:"symptoms"`
	Notes                 string    `json:"notes"`
	AssignedBy            *string   `json:"assigned_by"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Scope restricts which mappings a caller can see. Zero value is unrestricted.
type Scope struct {
	PatientUserID *string
	DoctorUserID  *string
}

type ListFilter struct {
	Search    *string
	Status    *Status
	PatientID *string
	DoctorID  *string
	Scope     Scope
	Limit     int
	Offset    int
}

type CreateMappingRequest struct {
	PatientID string   `json:"patient_id" binding:"required,uuid"`
	DoctorID  string   `json:"doctor_id" binding:"required,uuid"`
	Status    Status   `json:"status" binding:"omitempty,oneof=active inactive completed"`
	Symptoms  []string `json:"symptoms" binding:"omitempty,max=30,dive,required,max=120"`
	Notes     string   `json:"notes" binding:"omitempty,max=2000"`
}

type UpdateMappingRequest struct {
	Status   *Status  `json:"status" binding:"omitempty,oneof=active inactive completed"`
	Symptoms []string `json:"symptoms" binding:"omitempty,max=30,dive,required,max=120"`
	Notes    *string  `json:"notes" binding:"omitempty,max=2000"`
}

func NewFromCreateRequest(req CreateMappingRequest, assignedBy *string) Mapping {
	now := time.Now().UTC()

	status := req.Status
	if status == "" {
		status = StatusActive
	}

	return Mapping{
		ID:         uuid.NewString(),
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		Status:     status,
		Symptoms:   cleanSymptoms(req.Symptoms),
		Notes:      strings.TrimSpace(req.Notes),
		AssignedBy: assignedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (m *Mapping) Apply(req UpdateMappingRequest) {
	if req.Status != nil {
		m.Status = *req.Status
	}
	if req.Symptoms != nil {
		m.Symptoms = cleanSymptoms(req.Symptoms)
	}
	if req.Notes != nil {
		m.Notes = strings.TrimSpace(*req.Notes)
	}
}

func cleanSymptoms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
