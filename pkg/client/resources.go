package client

import (
	"context"
	"net/http"
	"net/url"
)

func itemPath(base, id string) string {
	return base + url.PathEscape(id) + "/"
}

type PatientsService struct{ c *Client }

func (s *PatientsService) List(ctx context.Context, p ListParams) (Page[Patient], error) {
	var out Page[Patient]
	err := s.c.do(ctx, http.MethodGet, "/patients/", p.values(), nil, &out)
	return out, err
}

// Mine lists the patients mapped to the calling doctor.
func (s *PatientsService) Mine(ctx context.Context, p ListParams) (Page[Patient], error) {
	var out Page[Patient]
	err := s.c.do(ctx, http.MethodGet, "/doctor/my-patients/", p.values(), nil, &out)
	return out, err
}

func (s *PatientsService) Get(ctx context.Context, id string) (Patient, error) {
	var out Patient
	err := s.c.do(ctx, http.MethodGet, itemPath("/patients/", id), nil, nil, &out)
	return out, err
}

func (s *PatientsService) Create(ctx context.Context, in PatientInput) (Patient, error) {
	var out Patient
	err := s.c.do(ctx, http.MethodPost, "/patients/", nil, in, &out)
	return out, err
}

func (s *PatientsService) Update(ctx context.Context, id string, in PatientUpdate) (Patient, error) {
	var out Patient
	err := s.c.do(ctx, http.MethodPut, itemPath("/patients/", id), nil, in, &out)
	return out, err
}

func (s *PatientsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, itemPath("/patients/", id), nil, nil, nil)
}

type DoctorsService struct{ c *Client }

func (s *DoctorsService) List(ctx context.Context, p ListParams) (Page[Doctor], error) {
	var out Page[Doctor]
	err := s.c.do(ctx, http.MethodGet, "/doctors/", p.values(), nil, &out)
	return out, err
}

func (s *DoctorsService) Get(ctx context.Context, id string) (Doctor, error) {
	var out Doctor
	err := s.c.do(ctx, http.MethodGet, itemPath("/doctors/", id), nil, nil, &out)
	return out, err
}

func (s *DoctorsService) Create(ctx context.Context, in DoctorInput) (Doctor, error) {
	var out Doctor
	err := s.c.do(ctx, http.MethodPost, "/doctors/", nil, in, &out)
	return out, err
}

func (s *DoctorsService) Update(ctx context.Context, id string, in DoctorUpdate) (Doctor, error) {
	var out Doctor
	err := s.c.do(ctx, http.MethodPut, itemPath("/doctors/", id), nil, in, &out)
	return out, err
}

func (s *DoctorsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, itemPath("/doctors/", id), nil, nil, nil)
}

func (s *DoctorsService) SetApproval(ctx context.Context, id string, approved bool) (Doctor, error) {
	var out Doctor
	err := s.c.do(ctx, http.MethodPatch, itemPath("/doctors/", id)+"approval/", nil, map[string]bool{"is_approved": approved}, &out)
	return out, err
}

type MappingsService struct{ c *Client }

func (s *MappingsService) List(ctx context.Context, p ListParams) (Page[Mapping], error) {
	var out Page[Mapping]
	err := s.c.do(ctx, http.MethodGet, "/mappings/", p.values(), nil, &out)
	return out, err
}

func (s *MappingsService) ByPatient(ctx context.Context, patientID string, p ListParams) (Page[Mapping], error) {
	var out Page[Mapping]
	err := s.c.do(ctx, http.MethodGet, itemPath("/mappings/patient/", patientID), p.values(), nil, &out)
	return out, err
}

func (s *MappingsService) Get(ctx context.Context, id string) (Mapping, error) {
	var out Mapping
	err := s.c.do(ctx, http.MethodGet, itemPath("/mappings/", id), nil, nil, &out)
	return out, err
}

func (s *MappingsService) Create(ctx context.Context, in MappingInput) (Mapping, error) {
	var out Mapping
	err := s.c.do(ctx, http.MethodPost, "/mappings/", nil, in, &out)
	return out, err
}

func (s *MappingsService) Update(ctx context.Context, id string, in MappingUpdate) (Mapping, error) {
	var out Mapping
	err := s.c.do(ctx, http.MethodPut, itemPath("/mappings/", id), nil, in, &out)
	return out, err
}

func (s *MappingsService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, itemPath("/mappings/", id), nil, nil, nil)
}

type UsersService struct{ c *Client }

func (s *UsersService) List(ctx context.Context, p ListParams) (Page[User], error) {
	var out Page[User]
	err := s.c.do(ctx, http.MethodGet, "/users/", p.values(), nil, &out)
	return out, err
}

func (s *UsersService) Get(ctx context.Context, id string) (User, error) {
	var out User
	err := s.c.do(ctx, http.MethodGet, itemPath("/users/", id), nil, nil, &out)
	return out, err
}

func (s *UsersService) Update(ctx context.Context, id string, in UserUpdate) (User, error) {
	var out User
	err := s.c.do(ctx, http.MethodPut, itemPath("/users/", id), nil, in, &out)
	return out, err
}

func (s *UsersService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, http.MethodDelete, itemPath("/users/", id), nil, nil, nil)
}

type SettingsService struct{ c *Client }

func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.c.do(ctx, http.MethodGet, "/system-settings/", nil, nil, &out)
	return out, err
}

func (s *SettingsService) Update(ctx context.Context, in SettingsUpdate) (Settings, error) {
	var out Settings
	err := s.c.do(ctx, http.MethodPut, "/system-settings/", nil, in, &out)
	return out, err
}

type DashboardService struct{ c *Client }

func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	var out DashboardStats
	h, err := s.c.doHeader(ctx, http.MethodGet, "/dashboard/stats/", nil, nil, &out)
	if err != nil {
		return out, err
	}
	out.Cache = h.Get("X-Cache")
	return out, nil
}

func (s *DashboardService) Report(ctx context.Context) (Report, error) {
	var out Report
	err := s.c.do(ctx, http.MethodGet, "/reports/summary/", nil, nil, &out)
	return out, err
}
