package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/medportal/internal/auth"
	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/settings"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/geocoder89/medportal/internal/jobs"
	"github.com/geocoder89/medportal/internal/repo/postgres"
	"github.com/geocoder89/medportal/internal/security"
	"github.com/gin-gonic/gin"
)

const refreshCookiePath = "/api/v1/auth"

type AuthUsers interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error)
}

type AccountStore interface {
	Register(ctx context.Context, p postgres.RegisterParams) error
	ChangePassword(ctx context.Context, userID, hash string) error
}

type RefreshTokenStore interface {
	Issue(ctx context.Context, row postgres.RefreshTokenRow) error
	Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	RevokeByHash(ctx context.Context, tokenHash string) error
}

type SettingsReader interface {
	Get(ctx context.Context) (settings.SystemSettings, error)
}

type LoginLimiter interface {
	Check(ctx context.Context, email string, max int) error
	Fail(ctx context.Context, email string) (int64, error)
	Reset(ctx context.Context, email string) error
}

type PatientByUser interface {
	GetByUserID(ctx context.Context, userID string) (patient.Patient, error)
}

type DoctorByUser interface {
	GetByUserID(ctx context.Context, userID string) (doctor.Doctor, error)
}

type AuthHandlerDeps struct {
	Users    AuthUsers
	Accounts AccountStore
	Tokens   RefreshTokenStore
	Settings SettingsReader
	Guard    LoginLimiter
	Patients PatientByUser
	Doctors  DoctorByUser
	JWT      *auth.Manager
	Config   config.Config
}

type AuthHandler struct {
	users    AuthUsers
	accounts AccountStore
	tokens   RefreshTokenStore
	settings SettingsReader
	guard    LoginLimiter
	patients PatientByUser
	doctors  DoctorByUser
	jwt      *auth.Manager
	cfg      config.Config
}

func NewAuthHandler(d AuthHandlerDeps) *AuthHandler {
	return &AuthHandler{
		users:    d.Users,
		accounts: d.Accounts,
		tokens:   d.Tokens,
		settings: d.Settings,
		guard:    d.Guard,
		patients: d.Patients,
		doctors:  d.Doctors,
		jwt:      d.JWT,
		cfg:      d.Config,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is a self sign-up. Patient and doctor specific fields are
// checked against Role after binding.
type RegisterRequest struct {
	Email     string    `json:"email" binding:"required,email"`
	Password  string    `json:"password" binding:"required,max=128"`
	Password2 string    `json:"password2" binding:"required,eqfield=Password"`
	FullName  string    `json:"full_name" binding:"required,min=2,max=120"`
	Role      user.Role `json:"role" binding:"required,oneof=patient doctor"`

	ContactNumber string `json:"contact_number" binding:"omitempty,number,min=10,max=15"`

	Age            *int   `json:"age" binding:"omitempty,min=1,max=150"`
	Gender         string `json:"gender" binding:"omitempty,oneof=male female other"`
	Address        string `json:"address" binding:"omitempty,max=500"`
	MedicalHistory string `json:"medical_history" binding:"omitempty,max=5000"`
	Condition      string `json:"condition" binding:"omitempty,max=1000"`

	Specializations   []string `json:"specializations" binding:"omitempty,max=10,dive,required,min=2,max=80"`
	LicenseNumber     string   `json:"license_number" binding:"omitempty,min=3,max=40"`
	YearsOfExperience *int     `json:"years_of_experience" binding:"omitempty,min=0,max=70"`
}

func (r RegisterRequest) missingProfileFields() []FieldError {
	var out []FieldError
	need := func(ok bool, field string) {
		if !ok {
			out = append(out, FieldError{Field: field, Rule: "required", Message: "is required for role " + string(r.Role)})
		}
	}

	need(r.ContactNumber != "", "contact_number")

	switch r.Role {
	case user.RolePatient:
		need(r.Age != nil, "age")
		need(r.Gender != "", "gender")
	case user.RoleDoctor:
		need(len(doctor.NormalizeSpecializations(r.Specializations)) > 0, "specializations")
		need(strings.TrimSpace(r.LicenseNumber) != "", "license_number")
	}
	return out
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,max=128"`
}

// POST /auth/register/
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if missing := req.missingProfileFields(); len(missing) > 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": missing})
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	sys := h.loadSettings(cctx)

	if !h.checkPolicy(ctx, "password", req.Password, sys.PasswordMinLength) {
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u := user.New(user.CreateParams{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         req.Role,
	})

	params := postgres.RegisterParams{User: u}

	switch req.Role {
	case user.RolePatient:
		p := patient.NewFromCreateRequest(patient.CreatePatientRequest{
			FullName:       u.FullName,
			Email:          u.Email,
			Age:            *req.Age,
			Gender:         req.Gender,
			ContactNumber:  req.ContactNumber,
			Address:        req.Address,
			MedicalHistory: req.MedicalHistory,
			Condition:      req.Condition,
		}, &u.ID, &u.ID)
		params.Patient = &p
	case user.RoleDoctor:
		years := 0
		if req.YearsOfExperience != nil {
			years = *req.YearsOfExperience
		}
		d := doctor.NewFromCreateRequest(doctor.CreateDoctorRequest{
			FullName:          u.FullName,
			Email:             u.Email,
			Specializations:   req.Specializations,
			LicenseNumber:     req.LicenseNumber,
			YearsOfExperience: years,
			ContactNumber:     req.ContactNumber,
		}, &u.ID, &u.ID)
		params.Doctor = &d
	}

	if sys.EmailNotifications {
		jobReq, err := jobs.NewCreateRequest(jobs.JobSendWelcome, jobs.SendWelcomePayload{
			UserID:      u.ID,
			Email:       u.Email,
			Name:        u.FullName,
			Role:        string(u.Role),
			RequestedAt: time.Now().UTC(),
			RequestID:   requestIDFrom(ctx),
		}, "welcome:"+u.ID, &u.ID)
		if err != nil {
			RespondInternal(ctx, "Could not create user")
			return
		}
		params.Job = &jobReq
	}

	if err := h.accounts.Register(cctx, params); err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, doctor.ErrDuplicate):
			RespondConflict(ctx, "doctor_exists", "A doctor with this email or license number already exists.")
		default:
			slog.Default().ErrorContext(cctx, "register_failed", "err", err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	h.issuePair(ctx, cctx, u, http.StatusCreated)
}

// POST /auth/login/
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sys := h.loadSettings(cctx)

	if err := h.guard.Check(cctx, req.Email, sys.MaxLoginAttempts); errors.Is(err, security.ErrLockedOut) {
		ctx.Header("Retry-After", "900")
		RespondTooManyRequests(ctx, "locked_out", "Too many failed login attempts. Try again later.")
		return
	}

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err == nil {
		err = security.CheckPassword(foundUser.PasswordHash, req.Password)
	}
	if err != nil {
		if _, ferr := h.guard.Fail(cctx, req.Email); ferr != nil {
			slog.Default().WarnContext(cctx, "login_guard_unavailable", "err", ferr)
		}
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if !foundUser.IsActive {
		RespondForbidden(ctx, "account_disabled", "This account has been disabled.")
		return
	}

	_ = h.guard.Reset(cctx, req.Email)

	h.issuePair(ctx, cctx, foundUser, http.StatusOK)
}

// POST /auth/token/refresh/
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)

	if raw == "" {
		RespondUnauthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	// the role may have changed since the token was minted
	u, err := h.users.GetByID(cctx, claims.UserID)
	if err != nil || !u.IsActive {
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	next, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = h.tokens.Rotate(cctx, claims.JTI, h.jwt.HashRefreshToken(raw), h.refreshRow(u.ID, next))
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrRefreshTokenExpired):
			RespondUnauthorized(ctx, "expired_refresh", "Refresh token expired.")
		case errors.Is(err, postgres.ErrRefreshTokenNotFound),
			errors.Is(err, postgres.ErrRefreshTokenRevoked),
			errors.Is(err, postgres.ErrRefreshTokenMismatch):
			RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		default:
			slog.Default().ErrorContext(cctx, "refresh_rotate_failed", "err", err)
			RespondInternal(ctx, "Could not refresh session")
		}
		return
	}

	access, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, next.Raw, next.ExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"access":  access,
		"refresh": next.Raw,
	})
}

// POST /auth/logout/
func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw := h.presentedRefreshToken(ctx)

	if raw != "" {
		cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		// revoking is idempotent; an unknown token is not an error
		if err := h.tokens.RevokeByHash(cctx, h.jwt.HashRefreshToken(raw)); err != nil {
			slog.Default().WarnContext(cctx, "logout_revoke_failed", "err", err)
		}
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// GET /auth/profile/
func (h *AuthHandler) Profile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not load profile")
		return
	}

	h.respondProfile(ctx, cctx, u)
}

// PUT /auth/profile/
func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, userID, req)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	h.respondProfile(ctx, cctx, u)
}

// POST /auth/change-password/
func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	if security.CheckPassword(u.PasswordHash, req.CurrentPassword) != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_current_password", "Current password is incorrect.", nil)
		return
	}

	sys := h.loadSettings(cctx)
	if !h.checkPolicy(ctx, "new_password", req.NewPassword, sys.PasswordMinLength) {
		return
	}

	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	if err := h.accounts.ChangePassword(cctx, userID, hash); err != nil {
		RespondInternal(ctx, "Could not change password")
		return
	}

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Helper functions

func (h *AuthHandler) loadSettings(ctx context.Context) settings.SystemSettings {
	if h.settings == nil {
		return settings.Defaults()
	}

	s, err := h.settings.Get(ctx)
	if err != nil {
		slog.Default().WarnContext(ctx, "settings_unavailable_using_defaults", "err", err)
		return settings.Defaults()
	}
	return s
}

func (h *AuthHandler) checkPolicy(ctx *gin.Context, field, password string, minLength int) bool {
	err := security.CheckPolicy(password, minLength)
	if err == nil {
		return true
	}

	var pe *security.PolicyError
	if errors.As(err, &pe) {
		fields := make([]FieldError, 0, len(pe.Problems))
		for _, p := range pe.Problems {
			fields = append(fields, FieldError{Field: field, Rule: "password_policy", Message: p})
		}
		RespondError(ctx, http.StatusBadRequest, "weak_password", "Password does not meet the password policy.", gin.H{"fields": fields})
		return false
	}

	RespondInternal(ctx, "Could not validate password")
	return false
}

// issuePair mints and stores a token pair for u and writes {access, refresh, user}.
func (h *AuthHandler) issuePair(ctx *gin.Context, cctx context.Context, u user.User, status int) {
	access, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	refresh, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	if err := h.tokens.Issue(cctx, h.refreshRow(u.ID, refresh)); err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, refresh.Raw, refresh.ExpiresAt)

	ctx.JSON(status, gin.H{
		"access":  access,
		"refresh": refresh.Raw,
		"user":    u,
	})
}

func (h *AuthHandler) refreshRow(userID string, t auth.RefreshToken) postgres.RefreshTokenRow {
	return postgres.RefreshTokenRow{
		ID:        t.JTI,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(t.Raw),
		ExpiresAt: t.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func (h *AuthHandler) respondProfile(ctx *gin.Context, cctx context.Context, u user.User) {
	out := user.Profile{User: u}

	switch u.Role {
	case user.RolePatient:
		if h.patients != nil {
			p, err := h.patients.GetByUserID(cctx, u.ID)
			if err == nil {
				out.Profile = p
			} else if !errors.Is(err, patient.ErrNotFound) {
				RespondInternal(ctx, "Could not load profile")
				return
			}
		}
	case user.RoleDoctor:
		if h.doctors != nil {
			d, err := h.doctors.GetByUserID(cctx, u.ID)
			if err == nil {
				out.Profile = d
			} else if !errors.Is(err, doctor.ErrNotFound) {
				RespondInternal(ctx, "Could not load profile")
				return
			}
		}
	}

	ctx.JSON(http.StatusOK, out)
}

// presentedRefreshToken prefers the JSON body and falls back to the cookie.
func (h *AuthHandler) presentedRefreshToken(ctx *gin.Context) string {
	var req RefreshRequest

	if ctx.Request.ContentLength != 0 {
		_ = ctx.ShouldBindJSON(&req)
	}
	if v := strings.TrimSpace(req.Refresh); v != "" {
		return v
	}

	raw, err := ctx.Cookie(h.refreshCookieName())
	if err != nil {
		return ""
	}
	return raw
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		refreshCookiePath,
		"",
		h.cfg.IsProd(),
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		refreshCookiePath,
		"",
		h.cfg.IsProd(),
		true,
	)
}
