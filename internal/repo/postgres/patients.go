package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patientColumns = `p.id, p.user_id, p.full_name, p.email, p.age, p.gender, p.contact_number,
	p.address, p.medical_history, p.condition, p.created_by, p.created_at, p.updated_at`

type PatientsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewPatientsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PatientsRepo {
	return &PatientsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanPatient(row pgx.Row, extra ...any) (patient.Patient, error) {
	var p patient.Patient

	dest := []any{
		&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Age, &p.Gender, &p.ContactNumber,
		&p.Address, &p.MedicalHistory, &p.Condition, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

// pgx.Tx and *pgxpool.Pool both satisfy this.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPatient(ctx context.Context, db execer, p patient.Patient) error {
	_, err := db.Exec(ctx, `
		INSERT INTO patients (id, user_id, full_name, email, age, gender, contact_number,
			address, medical_history, condition, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		p.ID, p.UserID, p.FullName, p.Email, p.Age, p.Gender, p.ContactNumber,
		p.Address, p.MedicalHistory, p.Condition, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	err := r.observe("patients.create", func() error {
		return insertPatient(ctx, r.pool, p)
	})
	if err != nil {
		return patient.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patient.Patient, error) {
	return r.getOne(ctx, "patients.get_by_id", `p.id = $1`, id)
}

func (r *PatientsRepo) GetByUserID(ctx context.Context, userID string) (patient.Patient, error) {
	return r.getOne(ctx, "patients.get_by_user_id", `p.user_id = $1`, userID)
}

func (r *PatientsRepo) getOne(ctx context.Context, op, cond string, arg any) (patient.Patient, error) {
	var p patient.Patient

	err := r.observe(op, func() error {
		var err error
		p, err = scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients p WHERE `+cond, arg))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return patient.Patient{}, patient.ErrNotFound
		}
		return patient.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) List(ctx context.Context, f patient.ListFilter) ([]patient.Patient, int, error) {
	var w where

	if f.Search != nil {
		w.search(*f.Search, "p.full_name", "p.email", "p.condition")
	}
	if f.Gender != nil {
		w.add("p.gender = ?", *f.Gender)
	}
	if f.Scope.UserID != nil {
		w.add("p.user_id = ?", *f.Scope.UserID)
	}
	if f.Scope.DoctorUserID != nil {
		w.add(`EXISTS (
			SELECT 1 FROM patient_doctor_mappings m
			JOIN doctors d ON d.id = m.doctor_id
			WHERE m.patient_id = p.id AND d.user_id = ?)`, *f.Scope.DoctorUserID)
	}

	return queryPage(ctx, r.pool, r.observer, "patients.list",
		patientColumns, "FROM patients p", &w, "p.created_at DESC, p.id DESC", f.Limit, f.Offset,
		func(row pgx.Row, total *int) (patient.Patient, error) { return scanPatient(row, total) },
	)
}

func (r *PatientsRepo) Update(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	var tag pgconn.CommandTag

	err := r.observe("patients.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
			UPDATE patients
			SET full_name = $2, email = $3, age = $4, gender = $5, contact_number = $6,
			    address = $7, medical_history = $8, condition = $9, updated_at = $10
			WHERE id = $1
		`, p.ID, p.FullName, p.Email, p.Age, p.Gender, p.ContactNumber,
			p.Address, p.MedicalHistory, p.Condition, p.UpdatedAt)
		return err
	})
	if err != nil {
		return patient.Patient{}, err
	}
	if tag.RowsAffected() == 0 {
		return patient.Patient{}, patient.ErrNotFound
	}
	return p, nil
}

func (r *PatientsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("patients.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return patient.ErrNotFound
	}
	return nil
}
