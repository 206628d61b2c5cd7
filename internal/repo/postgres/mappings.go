package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/medportal/internal/domain/mapping"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mappingColumns = `m.id, m.patient_id, p.full_name, m.doctor_id, d.full_name, d.specializations,
	m.status, m.symptoms, m.notes, m.assigned_by, m.created_at, m.updated_at`

const mappingFrom = `FROM patient_doctor_mappings m
	JOIN patients p ON p.id = m.patient_id
	JOIN doctors d ON d.id = m.doctor_id`

type MappingsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewMappingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *MappingsRepo {
	return &MappingsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanMapping(row pgx.Row, extra ...any) (mapping.Mapping, error) {
	var m mapping.Mapping
	var status string

	dest := []any{
		&m.ID, &m.PatientID, &m.PatientName, &m.DoctorID, &m.DoctorName, &m.DoctorSpecializations,
		&status, &m.Symptoms, &m.Notes, &m.AssignedBy, &m.CreatedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return mapping.Mapping{}, err
	}
	m.Status = mapping.Status(status)
	return m, nil
}

// Create inserts m and returns it with the patient and doctor names filled in.
func (r *MappingsRepo) Create(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	err := r.observe("mappings.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO patient_doctor_mappings (id, patient_id, doctor_id, status, symptoms, notes, assigned_by, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, m.ID, m.PatientID, m.DoctorID, string(m.Status), m.Symptoms, m.Notes, m.AssignedBy, m.CreatedAt, m.UpdatedAt)
		return err
	})

	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return mapping.Mapping{}, mapping.ErrDuplicate
		case IsForeignKeyViolation(err):
			return mapping.Mapping{}, mapping.ErrUnknownFK
		}
		return mapping.Mapping{}, err
	}

	return r.GetByID(ctx, m.ID)
}

func (r *MappingsRepo) GetByID(ctx context.Context, id string) (mapping.Mapping, error) {
	var m mapping.Mapping

	err := r.observe("mappings.get_by_id", func() error {
		var err error
		m, err = scanMapping(r.pool.QueryRow(ctx, `SELECT `+mappingColumns+` `+mappingFrom+` WHERE m.id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mapping.Mapping{}, mapping.ErrNotFound
		}
		return mapping.Mapping{}, err
	}
	return m, nil
}

func (r *MappingsRepo) List(ctx context.Context, f mapping.ListFilter) ([]mapping.Mapping, int, error) {
	var w where

	if f.Search != nil {
		w.search(*f.Search, "p.full_name", "d.full_name", "m.notes")
	}
	if f.Status != nil {
		w.add("m.status = ?", string(*f.Status))
	}
	if f.PatientID != nil {
		w.add("m.patient_id = ?", *f.PatientID)
	}
	if f.DoctorID != nil {
		w.add("m.doctor_id = ?", *f.DoctorID)
	}
	if f.Scope.PatientUserID != nil {
		w.add("p.user_id = ?", *f.Scope.PatientUserID)
	}
	if f.Scope.DoctorUserID != nil {
		w.add("d.user_id = ?", *f.Scope.DoctorUserID)
	}

	return queryPage(ctx, r.pool, r.observer, "mappings.list",
		mappingColumns, mappingFrom, &w, "m.created_at DESC, m.id DESC", f.Limit, f.Offset,
		func(row pgx.Row, total *int) (mapping.Mapping, error) { return scanMapping(row, total) },
	)
}

func (r *MappingsRepo) Update(ctx context.Context, m mapping.Mapping) (mapping.Mapping, error) {
	var tag pgconn.CommandTag

	err := r.observe("mappings.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
			UPDATE patient_doctor_mappings
			SET status = $2, symptoms = $3, notes = $4, updated_at = $5
			WHERE id = $1
		`, m.ID, string(m.Status), m.Symptoms, m.Notes, m.UpdatedAt)
		return err
	})
	if err != nil {
		return mapping.Mapping{}, err
	}
	if tag.RowsAffected() == 0 {
		return mapping.Mapping{}, mapping.ErrNotFound
	}
	return m, nil
}

func (r *MappingsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("mappings.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM patient_doctor_mappings WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapping.ErrNotFound
	}
	return nil
}

// DoctorHasPatient reports whether the doctor owned by doctorUserID is mapped to patientID.
func (r *MappingsRepo) DoctorHasPatient(ctx context.Context, doctorUserID, patientID string) (bool, error) {
	var ok bool

	err := r.observe("mappings.doctor_has_patient", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM patient_doctor_mappings m
				JOIN doctors d ON d.id = m.doctor_id
				WHERE d.user_id = $1 AND m.patient_id = $2
			)
		`, doctorUserID, patientID).Scan(&ok)
	})
	return ok, err
}
