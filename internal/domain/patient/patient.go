package patient

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("patient not found")

type Patient struct {
	ID             string    `json:"id"`
	UserID         *string   `json:"user_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	ContactNumber  string    `json:"contact_number"`
	Address        string    `json:"address"`
	MedicalHistory string    `json:"medical_history"`
	Condition      string    `json:"condition"`
	CreatedBy      *string   `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Scope narrows list queries to what the caller is allowed to see.
// Zero value means unrestricted (admin).
type Scope struct {
	UserID       *string // patient: own profile only
	DoctorUserID *string // doctor: patients mapped to the doctor owned by this user
}

type ListFilter struct {
	Search *string
	Gender *string
	Scope  Scope
	Limit  int
	Offset int
}

type CreatePatientRequest struct {
	FullName       string `json:"full_name" binding:"required,min=2,max=120"`
	Email          string `json:"email" binding:"omitempty,email"`
	Age            int    `json:"age" binding:"required,min=1,max=150"`
	Gender         string `json:"gender" binding:"required,oneof=male female other"`
	ContactNumber  string `json:"contact_number" binding:"required,number,min=10,max=15"`
	Address        string `json:"address" binding:"omitempty,max=500"`
	MedicalHistory string `json:"medical_history" binding:"omitempty,max=5000"`
	Condition      string `json:"condition" binding:"omitempty,max=1000"`
}

// UpdatePatientRequest is a partial update; nil fields are left untouched.
type UpdatePatientRequest struct {
	FullName       *string `json:"full_name" binding:"omitempty,min=2,max=120"`
	Email          *string `json:"email" binding:"omitempty,email"`
	Age            *int    `json:"age" binding:"omitempty,min=1,max=150"`
	Gender         *string `json:"gender" binding:"omitempty,oneof=male female other"`
	ContactNumber  *string `json:"contact_number" binding:"omitempty,number,min=10,max=15"`
	Address        *string `json:"address" binding:"omitempty,max=500"`
	MedicalHistory *string `json:"medical_history" binding:"omitempty,max=5000"`
	Condition      *string `json:"condition" binding:"omitempty,max=1000"`
}

func NewFromCreateRequest(req CreatePatientRequest, userID, createdBy *string) Patient {
	now := time.Now().UTC()

	return Patient{
		ID:             uuid.NewString(),
		UserID:         userID,
		FullName:       strings.TrimSpace(req.FullName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Age:            req.Age,
		Gender:         strings.ToLower(req.Gender),
		ContactNumber:  req.ContactNumber,
		Address:        req.Address,
		MedicalHistory: req.MedicalHistory,
		Condition:      req.Condition,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply merges a partial update into p.
func (p *Patient) Apply(req UpdatePatientRequest) {
	if req.FullName != nil {
		p.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		p.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.Gender != nil {
		p.Gender = strings.ToLower(*req.Gender)
	}
	if req.ContactNumber != nil {
		p.ContactNumber = *req.ContactNumber
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.MedicalHistory != nil {
		p.MedicalHistory = *req.MedicalHistory
	}
	if req.Condition != nil {
		p.Condition = *req.Condition
	}
}
