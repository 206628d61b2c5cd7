package client

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the current user plus the patient or doctor record linked to it.
type Profile struct {
	User
	Patient *Patient `json:"-"`
	Doctor  *Doctor  `json:"-"`
}

func (p *Profile) UnmarshalJSON(b []byte) error {
	var raw struct {
		User
		Profile json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.User = raw.User
	p.Patient, p.Doctor = nil, nil
	if len(raw.Profile) == 0 || string(raw.Profile) == "null" {
		return nil
	}

	switch raw.Role {
	case RolePatient:
		p.Patient = &Patient{}
		return json.Unmarshal(raw.Profile, p.Patient)
	case RoleDoctor:
		p.Doctor = &Doctor{}
		return json.Unmarshal(raw.Profile, p.Doctor)
	}
	return nil
}

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

type PatientInput struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email,omitempty"`
	Age            int    `json:"age"`
	Gender         string `json:"gender"`
	ContactNumber  string `json:"contact_number"`
	Address        string `json:"address,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
	Condition      string `json:"condition,omitempty"`
}

// PatientUpdate is a partial update; nil fields are left untouched.
type PatientUpdate struct {
	FullName       *string `json:"full_name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Age            *int    `json:"age,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	ContactNumber  *string `json:"contact_number,omitempty"`
	Address        *string `json:"address,omitempty"`
	MedicalHistory *string `json:"medical_history,omitempty"`
	Condition      *string `json:"condition,omitempty"`
}

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

type DoctorInput struct {
	FullName          string   `json:"full_name"`
	Email             string   `json:"email"`
	Specializations   []string `json:"specializations"`
	LicenseNumber     string   `json:"license_number"`
	YearsOfExperience int      `json:"years_of_experience"`
	ContactNumber     string   `json:"contact_number"`
	IsApproved        bool     `json:"is_approved"`
}

type DoctorUpdate struct {
	FullName          *string  `json:"full_name,omitempty"`
	Email             *string  `json:"email,omitempty"`
	Specializations   []string `json:"specializations,omitempty"`
	LicenseNumber     *string  `json:"license_number,omitempty"`
	YearsOfExperience *int     `json:"years_of_experience,omitempty"`
	ContactNumber     *string  `json:"contact_number,omitempty"`
}

type Mapping struct {
	ID                    string    `json:"id"`
	PatientID             string    `json:"patient_id"`
	PatientName           string    `json:"patient_name"`
	DoctorID              string    `json:"doctor_id"`
	DoctorName            string    `json:"doctor_name"`
	DoctorSpecializations []string  `json:"doctor_specializations"`
	Status                string    `json:"status"`
	Symptoms              []string  `json:"symptoms"`
	Notes                 string    `json:"notes"`
	AssignedBy            *string   `json:"assigned_by"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type MappingInput struct {
	PatientID string   `json:"patient_id"`
	DoctorID  string   `json:"doctor_id"`
	Status    string   `json:"status,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

type MappingUpdate struct {
	Status   *string  `json:"status,omitempty"`
	Symptoms []string `json:"symptoms,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type UserUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ProfileUpdate struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Email         *string `json:"email,omitempty"`
	ContactNumber *string `json:"contact_number,omitempty"`
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FullName  string `json:"full_name"`
	Role      Role   `json:"role"`

	ContactNumber string `json:"contact_number,omitempty"`

	Age            *int   `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Address        string `json:"address,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
	Condition      string `json:"condition,omitempty"`

	Specializations   []string `json:"specializations,omitempty"`
	LicenseNumber     string   `json:"license_number,omitempty"`
	YearsOfExperience *int     `json:"years_of_experience,omitempty"`
}

type Settings struct {
	AutoLogout         bool      `json:"auto_logout"`
	SessionTimeout     int       `json:"session_timeout"`
	EmailNotifications bool      `json:"email_notifications"`
	DataRetention      int       `json:"data_retention"`
	MaxLoginAttempts   int       `json:"max_login_attempts"`
	PasswordMinLength  int       `json:"password_min_length"`
	UpdatedBy          *string   `json:"updated_by"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type SettingsUpdate struct {
	AutoLogout         *bool `json:"auto_logout,omitempty"`
	SessionTimeout     *int  `json:"session_timeout,omitempty"`
	EmailNotifications *bool `json:"email_notifications,omitempty"`
	DataRetention      *int  `json:"data_retention,omitempty"`
	MaxLoginAttempts   *int  `json:"max_login_attempts,omitempty"`
	PasswordMinLength  *int  `json:"password_min_length,omitempty"`
}

// DashboardStats holds whichever role-specific counters the server sent;
// fields that do not apply to the caller stay zero.
type DashboardStats struct {
	TotalPatients    int            `json:"total_patients"`
	TotalDoctors     int            `json:"total_doctors"`
	ApprovedDoctors  int            `json:"approved_doctors"`
	PendingDoctors   int            `json:"pending_doctors"`
	TotalMappings    int            `json:"total_mappings"`
	UsersByRole      map[string]int `json:"users_by_role"`
	MyPatients       int            `json:"my_patients"`
	MyDoctors        int            `json:"my_doctors"`
	ActiveMappings   int            `json:"active_mappings"`
	MappingsByStatus map[string]int `json:"mappings_by_status"`

	// Cache is the X-Cache header (HIT or MISS).
	Cache string `json:"-"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Report struct {
	PatientsByGender        map[string]int `json:"patients_by_gender"`
	DoctorsBySpecialization map[string]int `json:"doctors_by_specialization"`
	MappingsByStatus        map[string]int `json:"mappings_by_status"`
	RegistrationsLast30Days []DayCount     `json:"registrations_last_30_days"`
}

type Page[T any] struct {
	Items      []T `json:"items"`
	Count      int `json:"count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// ListParams is shared by every list call. Filters carries the entity
// specific query keys (gender, specialization, approved, status, role, ...).
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Filters  map[string]string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	for k, val := range p.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}
