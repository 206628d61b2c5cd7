package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/medportal/internal/auth"
	"github.com/geocoder89/medportal/internal/cache"
	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/settings"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/handlers"
	"github.com/geocoder89/medportal/internal/jobs"
	"github.com/geocoder89/medportal/internal/repo/postgres"
	"github.com/geocoder89/medportal/internal/security"
	"github.com/gin-gonic/gin"
)

type fakeAuthUsers struct {
	getByEmailFn    func(ctx context.Context, email string) (user.User, error)
	getByIDFn       func(ctx context.Context, id string) (user.User, error)
	updateProfileFn func(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error)
}

func (f *fakeAuthUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn == nil {
		return user.User{}, user.ErrNotFound
	}
	return f.getByEmailFn(ctx, email)
}

func (f *fakeAuthUsers) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn == nil {
		return user.User{}, user.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeAuthUsers) UpdateProfile(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error) {
	return f.updateProfileFn(ctx, id, req)
}

type fakeAccounts struct {
	registerFn       func(ctx context.Context, p postgres.RegisterParams) error
	changePasswordFn func(ctx context.Context, userID, hash string) error
}

func (f *fakeAccounts) Register(ctx context.Context, p postgres.RegisterParams) error {
	if f.registerFn == nil {
		return nil
	}
	return f.registerFn(ctx, p)
}

func (f *fakeAccounts) ChangePassword(ctx context.Context, userID, hash string) error {
	if f.changePasswordFn == nil {
		return nil
	}
	return f.changePasswordFn(ctx, userID, hash)
}

type fakeTokens struct {
	issued []postgres.RefreshTokenRow

	rotateFn       func(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error
	revokeByHashFn func(ctx context.Context, hash string) error
}

func (f *fakeTokens) Issue(_ context.Context, row postgres.RefreshTokenRow) error {
	f.issued = append(f.issued, row)
	return nil
}

func (f *fakeTokens) Rotate(ctx context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error {
	return f.rotateFn(ctx, oldID, presentedHash, next)
}

func (f *fakeTokens) RevokeByHash(ctx context.Context, hash string) error {
	if f.revokeByHashFn == nil {
		return nil
	}
	return f.revokeByHashFn(ctx, hash)
}

type fakeSettings struct {
	s settings.SystemSettings
}

func (f *fakeSettings) Get(context.Context) (settings.SystemSettings, error) { return f.s, nil }

type fakePatientByUser struct {
	p   patient.Patient
	err error
}

func (f fakePatientByUser) GetByUserID(context.Context, string) (patient.Patient, error) {
	return f.p, f.err
}

type fakeDoctorByUser struct{}

func (fakeDoctorByUser) GetByUserID(context.Context, string) (doctor.Doctor, error) {
	return doctor.Doctor{}, doctor.ErrNotFound
}

type authFixture struct {
	users    *fakeAuthUsers
	accounts *fakeAccounts
	tokens   *fakeTokens
	settings *fakeSettings
	patients fakePatientByUser
	jwt      *auth.Manager
}

func newAuthFixture() *authFixture {
	return &authFixture{
		users:    &fakeAuthUsers{},
		accounts: &fakeAccounts{},
		tokens:   &fakeTokens{},
		settings: &fakeSettings{s: settings.Defaults()},
		patients: fakePatientByUser{err: patient.ErrNotFound},
		jwt:      auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour),
	}
}

func (f *authFixture) router(role user.Role, id string) *gin.Engine {
	h := handlers.NewAuthHandler(handlers.AuthHandlerDeps{
		Users:    f.users,
		Accounts: f.accounts,
		Tokens:   f.tokens,
		Settings: f.settings,
		Guard:    security.NewLoginGuard(cache.New(time.Minute), time.Minute),
		Patients: f.patients,
		Doctors:  fakeDoctorByUser{},
		JWT:      f.jwt,
		Config:   config.Config{Env: "test"},
	})

	r := gin.New()
	g := r.Group("/api/v1/auth")
	g.POST("/register/", h.Register)
	g.POST("/login/", h.Login)
	g.POST("/token/refresh/", h.Refresh)
	g.POST("/logout/", h.Logout)

	me := g.Group("", as(role, id))
	me.GET("/profile/", h.Profile)
	me.PUT("/profile/", h.UpdateProfile)
	me.POST("/change-password/", h.ChangePassword)
	return r
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()

	h, err := security.HashPassword(plain)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

type tokenPairResponse struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	User    user.User `json:"user"`
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture()
	hash := mustHash(t, "Secret123")

	f.users.getByEmailFn = func(_ context.Context, email string) (user.User, error) {
		return user.User{ID: patientID, Email: email, PasswordHash: hash, Role: user.RolePatient, IsActive: true}, nil
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/login/",
		map[string]string{"email": "jane@example.com", "password": "Secret123"})
	expectStatus(t, w, http.StatusOK)

	var resp tokenPairResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Access == "" || resp.Refresh == "" {
		t.Fatalf("expected both tokens, got %+v", resp)
	}
	if resp.User.ID != patientID || resp.User.Role != user.RolePatient {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if strings.Contains(w.Body.String(), hash) {
		t.Fatal("password hash leaked into response")
	}

	claims, err := f.jwt.VerifyAccessToken(resp.Access)
	if err != nil || claims.UserID != patientID {
		t.Fatalf("access token invalid: %v %+v", err, claims)
	}

	if len(f.tokens.issued) != 1 || f.tokens.issued[0].TokenHash != f.jwt.HashRefreshToken(resp.Refresh) {
		t.Fatalf("refresh token not stored hashed: %+v", f.tokens.issued)
	}

	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "refresh_token=") || !strings.Contains(cookie, "Path=/api/v1/auth") || !strings.Contains(cookie, "HttpOnly") {
		t.Fatalf("unexpected cookie %q", cookie)
	}
}

func TestLogin_LocksOutAfterMaxAttempts(t *testing.T) {
	f := newAuthFixture()
	f.settings.s.MaxLoginAttempts = 2
	hash := mustHash(t, "Secret123")

	f.users.getByEmailFn = func(_ context.Context, email string) (user.User, error) {
		return user.User{ID: patientID, Email: email, PasswordHash: hash, Role: user.RolePatient, IsActive: true}, nil
	}
	r := f.router("", "")

	for i := 0; i < 2; i++ {
		w := doRequest(t, r, http.MethodPost, "/api/v1/auth/login/",
			map[string]string{"email": "jane@example.com", "password": "wrong"})
		expectCode(t, w, http.StatusUnauthorized, "invalid_credentials")
	}

	// even the right password is refused now
	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/login/",
		map[string]string{"email": "JANE@example.com", "password": "Secret123"})
	expectCode(t, w, http.StatusTooManyRequests, "locked_out")
}

func TestLogin_UnknownEmailAndDisabledAccount(t *testing.T) {
	f := newAuthFixture()
	hash := mustHash(t, "Secret123")

	f.users.getByEmailFn = func(_ context.Context, email string) (user.User, error) {
		if email == "ghost@example.com" {
			return user.User{}, user.ErrNotFound
		}
		return user.User{ID: doctorID, Email: email, PasswordHash: hash, Role: user.RoleDoctor, IsActive: false}, nil
	}
	r := f.router("", "")

	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/login/",
		map[string]string{"email": "ghost@example.com", "password": "Secret123"})
	expectCode(t, w, http.StatusUnauthorized, "invalid_credentials")

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/login/",
		map[string]string{"email": "doc@example.com", "password": "Secret123"})
	expectCode(t, w, http.StatusForbidden, "account_disabled")
}

func patientSignup() map[string]any {
	return map[string]any{
		"email":          "Jane@Example.com",
		"password":       "Secret123",
		"password2":      "Secret123",
		"full_name":      "Jane Doe",
		"role":           "patient",
		"age":            34,
		"gender":         "female",
		"contact_number": "5551234567",
	}
}

func TestRegister_PatientCreatesProfileAndWelcomeJob(t *testing.T) {
	f := newAuthFixture()

	var got postgres.RegisterParams
	f.accounts.registerFn = func(_ context.Context, p postgres.RegisterParams) error {
		got = p
		return nil
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/register/", patientSignup())
	expectStatus(t, w, http.StatusCreated)

	if got.User.Email != "jane@example.com" || got.User.Role != user.RolePatient {
		t.Fatalf("unexpected user %+v", got.User)
	}
	if got.Patient == nil || got.Patient.UserID == nil || *got.Patient.UserID != got.User.ID {
		t.Fatalf("patient profile not linked: %+v", got.Patient)
	}
	if got.Doctor != nil {
		t.Fatal("doctor profile should not be created for a patient")
	}
	if got.Job == nil || got.Job.Type != string(jobs.JobSendWelcome) {
		t.Fatalf("expected welcome job, got %+v", got.Job)
	}
	if got.Job.IdempotencyKey == nil || *got.Job.IdempotencyKey != "welcome:"+got.User.ID {
		t.Fatalf("unexpected idempotency key %+v", got.Job.IdempotencyKey)
	}

	var resp tokenPairResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Access == "" || resp.User.ID != got.User.ID {
		t.Fatalf("unexpected response %s", w.Body.String())
	}
}

func TestRegister_SkipsWelcomeJobWhenNotificationsOff(t *testing.T) {
	f := newAuthFixture()
	f.settings.s.EmailNotifications = false

	var got postgres.RegisterParams
	f.accounts.registerFn = func(_ context.Context, p postgres.RegisterParams) error {
		got = p
		return nil
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/register/", patientSignup())
	expectStatus(t, w, http.StatusCreated)

	if got.Job != nil {
		t.Fatalf("expected no job, got %+v", got.Job)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m map[string]any)
		wantCode  string
		wantField string
	}{
		{
			name:      "password mismatch",
			mutate:    func(m map[string]any) { m["password2"] = "Different1" },
			wantCode:  "invalid_request",
			wantField: "password2",
		},
		{
			name:      "patient without age",
			mutate:    func(m map[string]any) { delete(m, "age") },
			wantCode:  "invalid_request",
			wantField: "age",
		},
		{
			name: "doctor without license",
			mutate: func(m map[string]any) {
				m["role"] = "doctor"
				m["specializations"] = []string{"Cardiology"}
			},
			wantCode:  "invalid_request",
			wantField: "license_number",
		},
		{
			name:      "admin self signup",
			mutate:    func(m map[string]any) { m["role"] = "admin" },
			wantCode:  "invalid_request",
			wantField: "role",
		},
		{
			name: "weak password",
			mutate: func(m map[string]any) {
				m["password"] = "password"
				m["password2"] = "password"
			},
			wantCode:  "weak_password",
			wantField: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture()
			f.accounts.registerFn = func(context.Context, postgres.RegisterParams) error {
				t.Fatal("register should not be called")
				return nil
			}

			body := patientSignup()
			tt.mutate(body)

			w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/register/", body)
			expectCode(t, w, http.StatusBadRequest, tt.wantCode)

			env := decodeError(t, w)
			found := false
			for _, fe := range env.Error.Details.Fields {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected field %q in %s", tt.wantField, w.Body.String())
			}
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newAuthFixture()
	f.accounts.registerFn = func(context.Context, postgres.RegisterParams) error {
		return user.ErrEmailTaken
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/register/", patientSignup())
	expectCode(t, w, http.StatusConflict, "email_taken")

	if len(f.tokens.issued) != 0 {
		t.Fatal("no session should be issued when registration fails")
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture()

	old, err := f.jwt.GenerateRefreshToken(doctorID, "doc@example.com", user.RoleDoctor)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	f.users.getByIDFn = func(_ context.Context, id string) (user.User, error) {
		// role changed since the token was minted
		return user.User{ID: id, Email: "doc@example.com", Role: user.RoleAdmin, IsActive: true}, nil
	}

	var gotOld, gotHash string
	var gotNext postgres.RefreshTokenRow
	f.tokens.rotateFn = func(_ context.Context, oldID, presentedHash string, next postgres.RefreshTokenRow) error {
		gotOld, gotHash, gotNext = oldID, presentedHash, next
		return nil
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/token/refresh/",
		map[string]string{"refresh": old.Raw})
	expectStatus(t, w, http.StatusOK)

	if gotOld != old.JTI || gotHash != f.jwt.HashRefreshToken(old.Raw) {
		t.Fatalf("rotate called with %q/%q", gotOld, gotHash)
	}
	if gotNext.UserID != doctorID || gotNext.ID == old.JTI {
		t.Fatalf("unexpected next row %+v", gotNext)
	}

	var resp tokenPairResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Refresh == "" || resp.Refresh == old.Raw {
		t.Fatal("expected a new refresh token")
	}

	claims, err := f.jwt.VerifyAccessToken(resp.Access)
	if err != nil || claims.Role != user.RoleAdmin {
		t.Fatalf("access token should carry the current role: %v %+v", err, claims)
	}
}

func TestRefresh_Failures(t *testing.T) {
	f := newAuthFixture()
	f.users.getByIDFn = func(_ context.Context, id string) (user.User, error) {
		return user.User{ID: id, Role: user.RolePatient, IsActive: true}, nil
	}

	tok, _ := f.jwt.GenerateRefreshToken(patientID, "p@example.com", user.RolePatient)
	access, _ := f.jwt.GenerateAccessToken(patientID, "p@example.com", user.RolePatient)

	tests := []struct {
		name     string
		body     any
		rotate   error
		wantCode string
	}{
		{"missing", nil, nil, "no_refresh"},
		{"access token presented", map[string]string{"refresh": access}, nil, "invalid_refresh"},
		{"revoked", map[string]string{"refresh": tok.Raw}, postgres.ErrRefreshTokenRevoked, "invalid_refresh"},
		{"unknown", map[string]string{"refresh": tok.Raw}, postgres.ErrRefreshTokenNotFound, "invalid_refresh"},
		{"expired", map[string]string{"refresh": tok.Raw}, postgres.ErrRefreshTokenExpired, "expired_refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.tokens.rotateFn = func(context.Context, string, string, postgres.RefreshTokenRow) error {
				return tt.rotate
			}

			w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/token/refresh/", tt.body)
			expectCode(t, w, http.StatusUnauthorized, tt.wantCode)
		})
	}
}

func TestLogout_RevokesCookieToken(t *testing.T) {
	f := newAuthFixture()
	tok, _ := f.jwt.GenerateRefreshToken(patientID, "p@example.com", user.RolePatient)

	var revoked string
	f.tokens.revokeByHashFn = func(_ context.Context, hash string) error {
		revoked = hash
		return errors.New("db down is not the caller's problem")
	}

	w := doRequest(t, f.router("", ""), http.MethodPost, "/api/v1/auth/logout/", nil,
		"Cookie", "refresh_token="+tok.Raw)
	expectStatus(t, w, http.StatusNoContent)

	if revoked != f.jwt.HashRefreshToken(tok.Raw) {
		t.Fatalf("revoked %q", revoked)
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0") {
		t.Fatalf("cookie should be cleared: %q", w.Header().Get("Set-Cookie"))
	}
}

func TestProfile_EmbedsRoleProfile(t *testing.T) {
	f := newAuthFixture()
	f.users.getByIDFn = func(_ context.Context, id string) (user.User, error) {
		return user.User{ID: id, Email: "p@example.com", Role: user.RolePatient, IsActive: true}, nil
	}
	f.patients = fakePatientByUser{p: patient.Patient{ID: recordID, FullName: "Jane Doe"}}

	w := doRequest(t, f.router(user.RolePatient, patientID), http.MethodGet, "/api/v1/auth/profile/", nil)
	expectStatus(t, w, http.StatusOK)

	var resp struct {
		ID      string          `json:"id"`
		Profile patient.Patient `json:"profile"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != patientID || resp.Profile.ID != recordID {
		t.Fatalf("unexpected profile %s", w.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture()
	hash := mustHash(t, "Secret123")

	f.users.getByIDFn = func(_ context.Context, id string) (user.User, error) {
		return user.User{ID: id, PasswordHash: hash, Role: user.RoleDoctor, IsActive: true}, nil
	}

	var changedFor, newHash string
	f.accounts.changePasswordFn = func(_ context.Context, userID, h string) error {
		changedFor, newHash = userID, h
		return nil
	}
	r := f.router(user.RoleDoctor, doctorID)

	w := doRequest(t, r, http.MethodPost, "/api/v1/auth/change-password/",
		map[string]string{"current_password": "nope", "new_password": "Better456"})
	expectCode(t, w, http.StatusBadRequest, "invalid_current_password")

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/change-password/",
		map[string]string{"current_password": "Secret123", "new_password": "short"})
	expectCode(t, w, http.StatusBadRequest, "weak_password")

	w = doRequest(t, r, http.MethodPost, "/api/v1/auth/change-password/",
		map[string]string{"current_password": "Secret123", "new_password": "Better456"})
	expectStatus(t, w, http.StatusNoContent)

	if changedFor != doctorID || security.CheckPassword(newHash, "Better456") != nil {
		t.Fatalf("password not changed correctly for %q", changedFor)
	}
}
