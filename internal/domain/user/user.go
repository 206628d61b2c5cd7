package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the /auth/profile payload: the user plus its role-specific record.
type Profile struct {
	User
	Profile any `json:"profile,omitempty"`
}

// HasRole reports whether u holds one of roles. No roles means no access.
func HasRole(u User, roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// SplitName turns "Jane van Doe" into ("Jane", "van Doe").
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	first, last, _ = strings.Cut(full, " ")
	return first, strings.TrimSpace(last)
}

// UsernameFromEmail derives the default username from the local part of an email.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}

type CreateParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
}

// New builds an active user with a fresh id and derived username and name parts.
func New(p CreateParams) User {
	now := time.Now().UTC()
	email := strings.ToLower(strings.TrimSpace(p.Email))
	full := strings.TrimSpace(p.FullName)
	first, last := SplitName(full)

	return User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     UsernameFromEmail(email),
		PasswordHash: p.PasswordHash,
		FirstName:    first,
		LastName:     last,
		FullName:     full,
		Role:         p.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type ListFilter struct {
	Search   *string
	Role     *Role
	IsActive *bool
	Limit    int
	Offset   int
}

type UpdateRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,min=2,max=120"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=patient doctor admin"`
	IsActive *bool   `json:"is_active"`
}

type UpdateProfileRequest struct {
	FirstName     *string `json:"first_name" binding:"omitempty,max=60"`
	LastName      *string `json:"last_name" binding:"omitempty,max=60"`
	Email         *string `json:"email" binding:"omitempty,email"`
	ContactNumber *string `json:"contact_number" binding:"omitempty,number,min=10,max=15"`
}
