package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/medportal/internal/cache"
	"github.com/geocoder89/medportal/internal/domain/stats"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type fakeStats struct {
	calls map[string]int
	err   error
}

func (f *fakeStats) hit(name string) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeStats) Admin(context.Context) (stats.AdminStats, error) {
	f.hit("admin")
	return stats.AdminStats{TotalPatients: 7, UsersByRole: map[string]int{"admin": 1}}, f.err
}

func (f *fakeStats) Doctor(_ context.Context, id string) (stats.DoctorStats, error) {
	f.hit("doctor:" + id)
	return stats.DoctorStats{MyPatients: 3}, f.err
}

func (f *fakeStats) Patient(_ context.Context, id string) (stats.PatientStats, error) {
	f.hit("patient:" + id)
	return stats.PatientStats{MyDoctors: 2}, f.err
}

func (f *fakeStats) Report(context.Context, time.Time) (stats.ReportSummary, error) {
	f.hit("report")
	return stats.ReportSummary{MappingsByStatus: map[string]int{"active": 4}}, f.err
}

func dashboardRouter(repo *fakeStats, store cache.Store, role user.Role, id string) *gin.Engine {
	h := handlers.NewDashboardHandler(repo, store)

	r := gin.New()
	g := r.Group("/api/v1", as(role, id))
	g.GET("/dashboard/stats/", h.Stats)
	g.GET("/reports/summary/", h.Report)
	return r
}

func TestDashboardStats_CachesPerCaller(t *testing.T) {
	repo := &fakeStats{}
	store := cache.New(time.Minute)

	w := doRequest(t, dashboardRouter(repo, store, user.RoleDoctor, doctorID), http.MethodGet, "/api/v1/dashboard/stats/", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("X-Cache = %q", w.Header().Get("X-Cache"))
	}

	var first stats.DoctorStats
	_ = json.Unmarshal(w.Body.Bytes(), &first)
	if first.MyPatients != 3 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doRequest(t, dashboardRouter(repo, store, user.RoleDoctor, doctorID), http.MethodGet, "/api/v1/dashboard/stats/", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q", w.Header().Get("X-Cache"))
	}
	if repo.calls["doctor:"+doctorID] != 1 {
		t.Fatalf("repo called %d times", repo.calls["doctor:"+doctorID])
	}

	// a different doctor does not share the entry
	w = doRequest(t, dashboardRouter(repo, store, user.RoleDoctor, otherID), http.MethodGet, "/api/v1/dashboard/stats/", nil)
	if w.Header().Get("X-Cache") != "MISS" || repo.calls["doctor:"+otherID] != 1 {
		t.Fatalf("expected a miss for another doctor")
	}
}

func TestDashboardStats_RoleSelectsPayload(t *testing.T) {
	tests := []struct {
		role user.Role
		id   string
		call string
	}{
		{user.RoleAdmin, adminID, "admin"},
		{user.RoleDoctor, doctorID, "doctor:" + doctorID},
		{user.RolePatient, patientID, "patient:" + patientID},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			repo := &fakeStats{}

			w := doRequest(t, dashboardRouter(repo, nil, tt.role, tt.id), http.MethodGet, "/api/v1/dashboard/stats/", nil)
			expectStatus(t, w, http.StatusOK)

			if repo.calls[tt.call] != 1 || len(repo.calls) != 1 {
				t.Fatalf("calls = %v", repo.calls)
			}
		})
	}
}

func TestReportSummary_CachedAndErrors(t *testing.T) {
	repo := &fakeStats{}
	store := cache.New(time.Minute)
	r := dashboardRouter(repo, store, user.RoleAdmin, adminID)

	expectStatus(t, doRequest(t, r, http.MethodGet, "/api/v1/reports/summary/", nil), http.StatusOK)
	w := doRequest(t, r, http.MethodGet, "/api/v1/reports/summary/", nil)
	if w.Header().Get("X-Cache") != "HIT" || repo.calls["report"] != 1 {
		t.Fatalf("expected cached report, calls=%v", repo.calls)
	}

	failing := &fakeStats{err: errors.New("db down")}
	w = doRequest(t, dashboardRouter(failing, cache.New(time.Minute), user.RoleAdmin, adminID), http.MethodGet, "/api/v1/reports/summary/", nil)
	expectCode(t, w, http.StatusInternalServerError, "internal_error")
}
