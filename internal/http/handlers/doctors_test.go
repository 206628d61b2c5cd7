package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakeDoctorsStore struct {
	createFn      func(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error)
	getByIDFn     func(ctx context.Context, id string) (doctor.Doctor, error)
	listFn        func(ctx context.Context, f doctor.ListFilter) ([]doctor.Doctor, int, error)
	updateFn      func(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error)
	setApprovalFn func(ctx context.Context, id string, approved bool) (doctor.Doctor, error)
}

func (f *fakeDoctorsStore) Create(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error) {
	return f.createFn(ctx, d)
}

func (f *fakeDoctorsStore) GetByID(ctx context.Context, id string) (doctor.Doctor, error) {
	if f.getByIDFn == nil {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeDoctorsStore) List(ctx context.Context, filter doctor.ListFilter) ([]doctor.Doctor, int, error) {
	return f.listFn(ctx, filter)
}

func (f *fakeDoctorsStore) Update(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error) {
	if f.updateFn == nil {
		return d, nil
	}
	return f.updateFn(ctx, d)
}

func (f *fakeDoctorsStore) SetApproval(ctx context.Context, id string, approved bool) (doctor.Doctor, error) {
	return f.setApprovalFn(ctx, id, approved)
}

func (f *fakeDoctorsStore) Delete(context.Context, string) error { return nil }

func doctorsRouter(store *fakeDoctorsStore, role user.Role, id string) *gin.Engine {
	h := handlers.NewDoctorsHandler(store)

	r := gin.New()
	g := r.Group("/api/v1", as(role, id))
	g.GET("/doctors/", h.List)
	g.POST("/doctors/", h.Create)
	g.GET("/doctors/:id/", h.GetByID)
	g.PUT("/doctors/:id/", h.Update)
	g.PATCH("/doctors/:id/approval/", h.SetApproval)
	return r
}

func TestDoctorsList_NonAdminsOnlySeeApproved(t *testing.T) {
	tests := []struct {
		name  string
		role  user.Role
		query string
		want  *bool
	}{
		{"admin unfiltered", user.RoleAdmin, "", nil},
		{"admin pending", user.RoleAdmin, "?approved=false", ptr(false)},
		{"patient forced", user.RolePatient, "?approved=false", ptr(true)},
		{"doctor forced", user.RoleDoctor, "", ptr(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got doctor.ListFilter
			store := &fakeDoctorsStore{
				listFn: func(_ context.Context, f doctor.ListFilter) ([]doctor.Doctor, int, error) {
					got = f
					return nil, 0, nil
				},
			}

			w := doRequest(t, doctorsRouter(store, tt.role, otherID), http.MethodGet, "/api/v1/doctors/"+tt.query, nil)
			expectStatus(t, w, http.StatusOK)

			switch {
			case tt.want == nil && got.Approved != nil:
				t.Fatalf("approved = %v, want unset", *got.Approved)
			case tt.want != nil && (got.Approved == nil || *got.Approved != *tt.want):
				t.Fatalf("approved = %v, want %v", got.Approved, *tt.want)
			}
		})
	}
}

func TestDoctorsList_BadApprovedFlag(t *testing.T) {
	store := &fakeDoctorsStore{}
	w := doRequest(t, doctorsRouter(store, user.RoleAdmin, adminID), http.MethodGet, "/api/v1/doctors/?approved=maybe", nil)
	expectCode(t, w, http.StatusBadRequest, "invalid_query")
}

func TestDoctorsGetByID_HidesPendingDoctors(t *testing.T) {
	owner := doctorID
	store := &fakeDoctorsStore{
		getByIDFn: func(context.Context, string) (doctor.Doctor, error) {
			return doctor.Doctor{ID: recordID, UserID: &owner, IsApproved: false}, nil
		},
	}

	tests := []struct {
		role user.Role
		id   string
		want int
	}{
		{user.RoleAdmin, adminID, http.StatusOK},
		{user.RoleDoctor, doctorID, http.StatusOK},
		{user.RoleDoctor, otherID, http.StatusNotFound},
		{user.RolePatient, patientID, http.StatusNotFound},
	}

	for _, tt := range tests {
		w := doRequest(t, doctorsRouter(store, tt.role, tt.id), http.MethodGet, "/api/v1/doctors/"+recordID+"/", nil)
		expectStatus(t, w, tt.want)
	}
}

func TestDoctorsCreate(t *testing.T) {
	body := map[string]any{
		"full_name":           "Dr. Ada Lovelace",
		"email":               "ada@example.com",
		"specializations":     []string{" Cardiology ", "cardiology", "Oncology"},
		"license_number":      "LIC-001",
		"years_of_experience": 12,
		"contact_number":      "5550001111",
	}

	t.Run("normalizes specializations", func(t *testing.T) {
		var got doctor.Doctor
		store := &fakeDoctorsStore{createFn: func(_ context.Context, d doctor.Doctor) (doctor.Doctor, error) {
			got = d
			return d, nil
		}}

		w := doRequest(t, doctorsRouter(store, user.RoleAdmin, adminID), http.MethodPost, "/api/v1/doctors/", body)
		expectStatus(t, w, http.StatusCreated)

		if len(got.Specializations) != 2 || got.Specializations[0] != "Cardiology" || got.Specializations[1] != "Oncology" {
			t.Fatalf("specializations = %v", got.Specializations)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		store := &fakeDoctorsStore{createFn: func(context.Context, doctor.Doctor) (doctor.Doctor, error) {
			return doctor.Doctor{}, doctor.ErrDuplicate
		}}

		w := doRequest(t, doctorsRouter(store, user.RoleAdmin, adminID), http.MethodPost, "/api/v1/doctors/", body)
		expectCode(t, w, http.StatusConflict, "doctor_exists")
	})

	t.Run("empty specializations", func(t *testing.T) {
		store := &fakeDoctorsStore{}
		bad := map[string]any{}
		for k, v := range body {
			bad[k] = v
		}
		bad["specializations"] = []string{}

		w := doRequest(t, doctorsRouter(store, user.RoleAdmin, adminID), http.MethodPost, "/api/v1/doctors/", bad)
		expectCode(t, w, http.StatusBadRequest, "invalid_request")
	})
}

func TestDoctorsUpdate_OwnerOrAdmin(t *testing.T) {
	owner := doctorID
	store := &fakeDoctorsStore{
		getByIDFn: func(context.Context, string) (doctor.Doctor, error) {
			return doctor.Doctor{ID: recordID, UserID: &owner, Specializations: []string{"Cardiology"}, YearsOfExperience: 3}, nil
		},
	}
	body := map[string]any{"years_of_experience": 4}

	w := doRequest(t, doctorsRouter(store, user.RoleDoctor, doctorID), http.MethodPut, "/api/v1/doctors/"+recordID+"/", body)
	expectStatus(t, w, http.StatusOK)

	w = doRequest(t, doctorsRouter(store, user.RoleAdmin, adminID), http.MethodPut, "/api/v1/doctors/"+recordID+"/", body)
	expectStatus(t, w, http.StatusOK)

	w = doRequest(t, doctorsRouter(store, user.RoleDoctor, otherID), http.MethodPut, "/api/v1/doctors/"+recordID+"/", body)
	expectCode(t, w, http.StatusForbidden, "forbidden")
}

func TestDoctorsSetApproval(t *testing.T) {
	var gotID string
	var gotApproved bool
	store := &fakeDoctorsStore{
		setApprovalFn: func(_ context.Context, id string, approved bool) (doctor.Doctor, error) {
			if id != recordID {
				return doctor.Doctor{}, doctor.ErrNotFound
			}
			gotID, gotApproved = id, approved
			return doctor.Doctor{ID: id, IsApproved: approved}, nil
		},
	}
	r := doctorsRouter(store, user.RoleAdmin, adminID)

	w := doRequest(t, r, http.MethodPatch, "/api/v1/doctors/"+recordID+"/approval/", map[string]any{"is_approved": true})
	expectStatus(t, w, http.StatusOK)
	if gotID != recordID || !gotApproved {
		t.Fatalf("approval not forwarded: %q %v", gotID, gotApproved)
	}

	// is_approved is required; false must still be accepted
	w = doRequest(t, r, http.MethodPatch, "/api/v1/doctors/"+recordID+"/approval/", map[string]any{})
	expectCode(t, w, http.StatusBadRequest, "invalid_request")

	w = doRequest(t, r, http.MethodPatch, "/api/v1/doctors/"+recordID+"/approval/", map[string]any{"is_approved": false})
	expectStatus(t, w, http.StatusOK)
	if gotApproved {
		t.Fatal("expected approval to be revoked")
	}

	w = doRequest(t, r, http.MethodPatch, "/api/v1/doctors/"+otherID+"/approval/", map[string]any{"is_approved": true})
	expectStatus(t, w, http.StatusNotFound)
}
