package stats

// AdminStats is the admin dashboard payload.
type AdminStats struct {
	TotalPatients   int            `json:"total_patients"`
	TotalDoctors    int            `json:"total_doctors"`
	ApprovedDoctors int            `json:"approved_doctors"`
	PendingDoctors  int            `json:"pending_doctors"`
	ActiveMappings  int            `json:"active_mappings"`
	TotalMappings   int            `json:"total_mappings"`
	UsersByRole     map[string]int `json:"users_by_role"`
}

type DoctorStats struct {
	MyPatients       int            `json:"my_patients"`
	ActiveMappings   int            `json:"active_mappings"`
	MappingsByStatus map[string]int `json:"mappings_by_status"`
}

type PatientStats struct {
	MyDoctors      int `json:"my_doctors"`
	ActiveMappings int `json:"active_mappings"`
}

type DayCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}

type ReportSummary struct {
	PatientsByGender        map[string]int `json:"patients_by_gender"`
	DoctorsBySpecialization map[string]int `json:"doctors_by_specialization"`
	MappingsByStatus        map[string]int `json:"mappings_by_status"`
	RegistrationsLast30Days []DayCount     `json:"registrations_last_30_days"`
}
