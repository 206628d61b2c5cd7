package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/medportal/internal/domain/stats"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool, prom *observability.Prom) *StatsRepo {
	return &StatsRepo{pool: pool, observer: observer{prom: prom}}
}

func (r *StatsRepo) Admin(ctx context.Context) (stats.AdminStats, error) {
	var s stats.AdminStats

	err := r.observe("stats.admin", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM patients),
				(SELECT COUNT(*) FROM doctors),
				(SELECT COUNT(*) FROM doctors WHERE is_approved),
				(SELECT COUNT(*) FROM doctors WHERE NOT is_approved),
				(SELECT COUNT(*) FROM patient_doctor_mappings WHERE status = 'active'),
				(SELECT COUNT(*) FROM patient_doctor_mappings)
		`).Scan(
			&s.TotalPatients, &s.TotalDoctors, &s.ApprovedDoctors,
			&s.PendingDoctors, &s.ActiveMappings, &s.TotalMappings,
		)
	})
	if err != nil {
		return stats.AdminStats{}, err
	}

	s.UsersByRole, err = r.groupCount(ctx, "stats.users_by_role",
		`SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return stats.AdminStats{}, err
	}
	return s, nil
}

func (r *StatsRepo) Doctor(ctx context.Context, doctorUserID string) (stats.DoctorStats, error) {
	var s stats.DoctorStats

	err := r.observe("stats.doctor", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(DISTINCT m.patient_id),
			       COUNT(*) FILTER (WHERE m.status = 'active')
			FROM patient_doctor_mappings m
			JOIN doctors d ON d.id = m.doctor_id
			WHERE d.user_id = $1
		`, doctorUserID).Scan(&s.MyPatients, &s.ActiveMappings)
	})
	if err != nil {
		return stats.DoctorStats{}, err
	}

	s.MappingsByStatus, err = r.groupCount(ctx, "stats.doctor_mappings_by_status", `
		SELECT m.status, COUNT(*)
		FROM patient_doctor_mappings m
		JOIN doctors d ON d.id = m.doctor_id
		WHERE d.user_id = $1
		GROUP BY m.status
	`, doctorUserID)
	if err != nil {
		return stats.DoctorStats{}, err
	}
	return s, nil
}

func (r *StatsRepo) Patient(ctx context.Context, patientUserID string) (stats.PatientStats, error) {
	var s stats.PatientStats

	err := r.observe("stats.patient", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(DISTINCT m.doctor_id),
			       COUNT(*) FILTER (WHERE m.status = 'active')
			FROM patient_doctor_mappings m
			JOIN patients p ON p.id = m.patient_id
			WHERE p.user_id = $1
		`, patientUserID).Scan(&s.MyDoctors, &s.ActiveMappings)
	})
	if err != nil {
		return stats.PatientStats{}, err
	}
	return s, nil
}

func (r *StatsRepo) Report(ctx context.Context, now time.Time) (stats.ReportSummary, error) {
	var (
		out stats.ReportSummary
		err error
	)

	if out.PatientsByGender, err = r.groupCount(ctx, "stats.patients_by_gender",
		`SELECT gender, COUNT(*) FROM patients GROUP BY gender`); err != nil {
		return stats.ReportSummary{}, err
	}

	if out.DoctorsBySpecialization, err = r.groupCount(ctx, "stats.doctors_by_specialization",
		`SELECT s, COUNT(*) FROM doctors, unnest(specializations) AS s GROUP BY s`); err != nil {
		return stats.ReportSummary{}, err
	}

	if out.MappingsByStatus, err = r.groupCount(ctx, "stats.mappings_by_status",
		`SELECT status, COUNT(*) FROM patient_doctor_mappings GROUP BY status`); err != nil {
		return stats.ReportSummary{}, err
	}

	byDay, err := r.groupCount(ctx, "stats.registrations_by_day", `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD'), COUNT(*)
		FROM users
		WHERE created_at >= $1
		GROUP BY 1
	`, startOfDay(now).AddDate(0, 0, -29))
	if err != nil {
		return stats.ReportSummary{}, err
	}

	out.RegistrationsLast30Days = FillDays(byDay, now, 30)
	return out, nil
}

// FillDays expands sparse per-day counts into n consecutive days ending today.
func FillDays(counts map[string]int, now time.Time, n int) []stats.DayCount {
	start := startOfDay(now).AddDate(0, 0, -(n - 1))

	out := make([]stats.DayCount, 0, n)
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, stats.DayCount{Day: day, Count: counts[day]})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *StatsRepo) groupCount(ctx context.Context, op, q string, args ...any) (map[string]int, error) {
	out := make(map[string]int)

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				return err
			}
			out[k] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
