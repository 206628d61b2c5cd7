package doctor

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("doctor not found")
	ErrDuplicate      = errors.New("doctor email or license already registered")
	ErrNotApproved    = errors.New("doctor is not approved")
	ErrNoSpecialities = errors.New("at least one specialization is required")
)

type Doctor struct {
	ID                string    `json:"id"`
	UserID            *string   `json:"user_id"`
	FullName          string    `json:"full_name"`
	Email             string    `json:"email"`
	Specializations   []string  `json:"specializations"`
	LicenseNumber     string    `json:"license_number"`
	YearsOfExperience int       `json:"years_of_experience"`
	ContactNumber     string    `json:"contact_number"`
	IsApproved        bool      `json:"is_approved"`
	CreatedBy         *string   `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ListFilter struct {
	Search         *string
	Specialization *string
	Approved       *bool
	Limit          int
	Offset         int
}

type CreateDoctorRequest struct {
	FullName          string   `json:"full_name" binding:"required,min=2,max=120"`
	Email             string   `json:"email" binding:"required,email"`
	Specializations   []string `json:"specializations" binding:"required,min=1,max=10,dive,required,min=2,max=80"`
	LicenseNumber     string   `json:"license_number" binding:"required,min=3,max=40"`
	YearsOfExperience int      `json:"years_of_experience" binding:"min=0,max=70"`
	ContactNumber     string   `json:"contact_number" binding:"required,number,min=10,max=15"`
	IsApproved        bool     `json:"is_approved"`
}

type UpdateDoctorRequest struct {
	FullName          *string  `json:"full_name" binding:"omitempty,min=2,max=120"`
	Email             *string  `json:"email" binding:"omitempty,email"`
	Specializations   []string `json:"specializations" binding:"omitempty,min=1,max=10,dive,required,min=2,max=80"`
	LicenseNumber     *string  `json:"license_number" binding:"omitempty,min=3,max=40"`
	YearsOfExperience *int     `json:"years_of_experience" binding:"omitempty,min=0,max=70"`
	ContactNumber     *string  `json:"contact_number" binding:"omitempty,number,min=10,max=15"`
}

type ApprovalRequest struct {
	IsApproved *bool `json:"is_approved" binding:"required"`
}

func NewFromCreateRequest(req CreateDoctorRequest, userID, createdBy *string) Doctor {
	now := time.Now().UTC()

	return Doctor{
		ID:                uuid.NewString(),
		UserID:            userID,
		FullName:          strings.TrimSpace(req.FullName),
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Specializations:   NormalizeSpecializations(req.Specializations),
		LicenseNumber:     strings.TrimSpace(req.LicenseNumber),
		YearsOfExperience: req.YearsOfExperience,
		ContactNumber:     req.ContactNumber,
		IsApproved:        req.IsApproved,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (d *Doctor) Apply(req UpdateDoctorRequest) {
	if req.FullName != nil {
		d.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		d.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Specializations != nil {
		d.Specializations = NormalizeSpecializations(req.Specializations)
	}
	if req.LicenseNumber != nil {
		d.LicenseNumber = strings.TrimSpace(*req.LicenseNumber)
	}
	if req.YearsOfExperience != nil {
		d.YearsOfExperience = *req.YearsOfExperience
	}
	if req.ContactNumber != nil {
		d.ContactNumber = *req.ContactNumber
	}
}

// NormalizeSpecializations trims entries and drops blanks and case-insensitive duplicates,
// keeping first-seen order.
func NormalizeSpecializations(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
