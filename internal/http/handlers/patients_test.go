package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/geocoder89/medportal/internal/domain/page"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakePatientsStore struct {
	createFn  func(ctx context.Context, p patient.Patient) (patient.Patient, error)
	getByIDFn func(ctx context.Context, id string) (patient.Patient, error)
	listFn    func(ctx context.Context, f patient.ListFilter) ([]patient.Patient, int, error)
	updateFn  func(ctx context.Context, p patient.Patient) (patient.Patient, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (f *fakePatientsStore) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	return f.createFn(ctx, p)
}

func (f *fakePatientsStore) GetByID(ctx context.Context, id string) (patient.Patient, error) {
	if f.getByIDFn == nil {
		return patient.Patient{}, patient.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakePatientsStore) List(ctx context.Context, filter patient.ListFilter) ([]patient.Patient, int, error) {
	return f.listFn(ctx, filter)
}

func (f *fakePatientsStore) Update(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if f.updateFn == nil {
		return p, nil
	}
	return f.updateFn(ctx, p)
}

func (f *fakePatientsStore) Delete(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

// fakeCareTeam maps doctor user ids to the patient ids they treat.
type fakeCareTeam map[string][]string

func (f fakeCareTeam) DoctorHasPatient(_ context.Context, doctorUserID, patientID string) (bool, error) {
	for _, id := range f[doctorUserID] {
		if id == patientID {
			return true, nil
		}
	}
	return false, nil
}

func patientsRouter(store *fakePatientsStore, team fakeCareTeam, role user.Role, id string) *gin.Engine {
	h := handlers.NewPatientsHandler(store, team)

	r := gin.New()
	g := r.Group("/api/v1", as(role, id))
	g.GET("/patients/", h.List)
	g.POST("/patients/", h.Create)
	g.GET("/patients/:id/", h.GetByID)
	g.PUT("/patients/:id/", h.Update)
	g.DELETE("/patients/:id/", h.Delete)
	g.GET("/doctor/my-patients/", h.MyPatients)
	return r
}

func TestPatientsList_ScopesByRole(t *testing.T) {
	tests := []struct {
		name       string
		role       user.Role
		id         string
		wantUser   bool
		wantDoctor bool
	}{
		{"admin sees everything", user.RoleAdmin, adminID, false, false},
		{"doctor sees mapped patients", user.RoleDoctor, doctorID, false, true},
		{"patient sees own record", user.RolePatient, patientID, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got patient.ListFilter
			store := &fakePatientsStore{
				listFn: func(_ context.Context, f patient.ListFilter) ([]patient.Patient, int, error) {
					got = f
					return nil, 0, nil
				},
			}

			w := doRequest(t, patientsRouter(store, nil, tt.role, tt.id), http.MethodGet, "/api/v1/patients/", nil)
			expectStatus(t, w, http.StatusOK)

			if (got.Scope.UserID != nil) != tt.wantUser || (got.Scope.DoctorUserID != nil) != tt.wantDoctor {
				t.Fatalf("unexpected scope %+v", got.Scope)
			}
			if tt.wantUser && *got.Scope.UserID != tt.id {
				t.Fatalf("scope user = %q", *got.Scope.UserID)
			}
			if tt.wantDoctor && *got.Scope.DoctorUserID != tt.id {
				t.Fatalf("scope doctor = %q", *got.Scope.DoctorUserID)
			}
		})
	}
}

func TestPatientsList_PagingAndFilters(t *testing.T) {
	var got patient.ListFilter
	store := &fakePatientsStore{
		listFn: func(_ context.Context, f patient.ListFilter) ([]patient.Patient, int, error) {
			got = f
			return []patient.Patient{{ID: recordID, FullName: "Jane Doe"}}, 41, nil
		},
	}
	r := patientsRouter(store, nil, user.RoleAdmin, adminID)

	w := doRequest(t, r, http.MethodGet, "/api/v1/patients/?page=3&page_size=20&search=jane&gender=female", nil)
	expectStatus(t, w, http.StatusOK)

	if got.Limit != 20 || got.Offset != 40 {
		t.Fatalf("limit/offset = %d/%d", got.Limit, got.Offset)
	}
	if got.Search == nil || *got.Search != "jane" || got.Gender == nil || *got.Gender != "female" {
		t.Fatalf("filters not forwarded: %+v", got)
	}

	var body page.Page[patient.Patient]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 41 || body.TotalPages != 3 || body.Page != 3 || len(body.Items) != 1 {
		t.Fatalf("unexpected page %+v", body)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag")
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/patients/?page=3&page_size=20&search=jane&gender=female", nil,
		"If-None-Match", etag)
	expectStatus(t, w, http.StatusNotModified)
}

func TestPatientsList_InvalidQuery(t *testing.T) {
	store := &fakePatientsStore{
		listFn: func(context.Context, patient.ListFilter) ([]patient.Patient, int, error) {
			t.Fatal("list should not be called")
			return nil, 0, nil
		},
	}
	r := patientsRouter(store, nil, user.RoleAdmin, adminID)

	for _, q := range []string{
		"page=0", "page=abc", "page=9223372036854775807", "page=" + strconv.Itoa(page.MaxPage+1),
		"page_size=0", "page_size=101", "gender=unknown",
	} {
		t.Run(q, func(t *testing.T) {
			w := doRequest(t, r, http.MethodGet, "/api/v1/patients/?"+q, nil)
			expectCode(t, w, http.StatusBadRequest, "invalid_query")
		})
	}
}

func TestPatientsGetByID_Scope(t *testing.T) {
	owner := patientID
	rec := patient.Patient{ID: recordID, UserID: &owner, FullName: "Jane Doe"}

	store := &fakePatientsStore{
		getByIDFn: func(_ context.Context, id string) (patient.Patient, error) {
			if id == recordID {
				return rec, nil
			}
			return patient.Patient{}, patient.ErrNotFound
		},
	}
	team := fakeCareTeam{doctorID: {recordID}}

	tests := []struct {
		name string
		role user.Role
		id   string
		path string
		want int
	}{
		{"admin", user.RoleAdmin, adminID, recordID, http.StatusOK},
		{"owner", user.RolePatient, patientID, recordID, http.StatusOK},
		{"other patient", user.RolePatient, otherID, recordID, http.StatusNotFound},
		{"mapped doctor", user.RoleDoctor, doctorID, recordID, http.StatusOK},
		{"unmapped doctor", user.RoleDoctor, otherID, recordID, http.StatusNotFound},
		{"missing", user.RoleAdmin, adminID, otherID, http.StatusNotFound},
		{"bad id", user.RoleAdmin, adminID, "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, patientsRouter(store, team, tt.role, tt.id), http.MethodGet, "/api/v1/patients/"+tt.path+"/", nil)
			expectStatus(t, w, tt.want)
		})
	}
}

func TestPatientsCreate_RecordsCreator(t *testing.T) {
	var got patient.Patient
	store := &fakePatientsStore{
		createFn: func(_ context.Context, p patient.Patient) (patient.Patient, error) {
			got = p
			return p, nil
		},
	}

	w := doRequest(t, patientsRouter(store, nil, user.RoleDoctor, doctorID), http.MethodPost, "/api/v1/patients/", map[string]any{
		"full_name":      "  John Roe ",
		"age":            52,
		"gender":         "Male",
		"contact_number": "5559876543",
	})

	// oneof is case sensitive
	expectCode(t, w, http.StatusBadRequest, "invalid_request")

	w = doRequest(t, patientsRouter(store, nil, user.RoleDoctor, doctorID), http.MethodPost, "/api/v1/patients/", map[string]any{
		"full_name":      "  John Roe ",
		"age":            52,
		"gender":         "male",
		"contact_number": "5559876543",
	})
	expectStatus(t, w, http.StatusCreated)

	if got.FullName != "John Roe" || got.UserID != nil {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.CreatedBy == nil || *got.CreatedBy != doctorID {
		t.Fatalf("created_by = %v", got.CreatedBy)
	}
}

func TestPatientsUpdate_AppliesPartialChanges(t *testing.T) {
	owner := patientID
	store := &fakePatientsStore{
		getByIDFn: func(context.Context, string) (patient.Patient, error) {
			return patient.Patient{ID: recordID, UserID: &owner, FullName: "Jane Doe", Age: 34, Condition: "stable"}, nil
		},
	}

	var saved patient.Patient
	store.updateFn = func(_ context.Context, p patient.Patient) (patient.Patient, error) {
		saved = p
		return p, nil
	}

	w := doRequest(t, patientsRouter(store, nil, user.RolePatient, patientID), http.MethodPut,
		"/api/v1/patients/"+recordID+"/", map[string]any{"age": 35})
	expectStatus(t, w, http.StatusOK)

	if saved.Age != 35 || saved.FullName != "Jane Doe" || saved.Condition != "stable" {
		t.Fatalf("unexpected saved record %+v", saved)
	}

	// another patient cannot reach it
	w = doRequest(t, patientsRouter(store, nil, user.RolePatient, otherID), http.MethodPut,
		"/api/v1/patients/"+recordID+"/", map[string]any{"age": 36})
	expectStatus(t, w, http.StatusNotFound)
}

func TestPatientsDelete(t *testing.T) {
	store := &fakePatientsStore{
		deleteFn: func(_ context.Context, id string) error {
			if id != recordID {
				return patient.ErrNotFound
			}
			return nil
		},
	}
	r := patientsRouter(store, nil, user.RoleAdmin, adminID)

	expectStatus(t, doRequest(t, r, http.MethodDelete, "/api/v1/patients/"+recordID+"/", nil), http.StatusNoContent)
	expectStatus(t, doRequest(t, r, http.MethodDelete, "/api/v1/patients/"+otherID+"/", nil), http.StatusNotFound)
}

func TestMyPatients_AlwaysScopedToDoctor(t *testing.T) {
	var got patient.ListFilter
	store := &fakePatientsStore{
		listFn: func(_ context.Context, f patient.ListFilter) ([]patient.Patient, int, error) {
			got = f
			return nil, 0, nil
		},
	}

	w := doRequest(t, patientsRouter(store, nil, user.RoleDoctor, doctorID), http.MethodGet, "/api/v1/doctor/my-patients/", nil)
	expectStatus(t, w, http.StatusOK)

	if got.Scope.DoctorUserID == nil || *got.Scope.DoctorUserID != doctorID {
		t.Fatalf("unexpected scope %+v", got.Scope)
	}

	var body page.Page[patient.Patient]
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Items == nil {
		t.Fatal("items should be an empty array, not null")
	}
}
