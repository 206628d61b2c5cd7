package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const doctorColumns = `d.id, d.user_id, d.full_name, d.email, d.specializations, d.license_number,
	d.years_of_experience, d.contact_number, d.is_approved, d.created_by, d.created_at, d.updated_at`

type DoctorsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewDoctorsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DoctorsRepo {
	return &DoctorsRepo{pool: pool, observer: observer{prom: prom}}
}

func scanDoctor(row pgx.Row, extra ...any) (doctor.Doctor, error) {
	var d doctor.Doctor

	dest := []any{
		&d.ID, &d.UserID, &d.FullName, &d.Email, &d.Specializations, &d.LicenseNumber,
		&d.YearsOfExperience, &d.ContactNumber, &d.IsApproved, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return d, err
}

func insertDoctor(ctx context.Context, db execer, d doctor.Doctor) error {
	_, err := db.Exec(ctx, `
		INSERT INTO doctors (id, user_id, full_name, email, specializations, license_number,
			years_of_experience, contact_number, is_approved, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		d.ID, d.UserID, d.FullName, d.Email, d.Specializations, d.LicenseNumber,
		d.YearsOfExperience, d.ContactNumber, d.IsApproved, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return doctor.ErrDuplicate
	}
	return err
}

func (r *DoctorsRepo) Create(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error) {
	err := r.observe("doctors.create", func() error {
		return insertDoctor(ctx, r.pool, d)
	})
	if err != nil {
		return doctor.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorsRepo) GetByID(ctx context.Context, id string) (doctor.Doctor, error) {
	return r.getOne(ctx, "doctors.get_by_id", `d.id = $1`, id)
}

func (r *DoctorsRepo) GetByUserID(ctx context.Context, userID string) (doctor.Doctor, error) {
	return r.getOne(ctx, "doctors.get_by_user_id", `d.user_id = $1`, userID)
}

func (r *DoctorsRepo) getOne(ctx context.Context, op, cond string, arg any) (doctor.Doctor, error) {
	var d doctor.Doctor

	err := r.observe(op, func() error {
		var err error
		d, err = scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors d WHERE `+cond, arg))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return doctor.Doctor{}, doctor.ErrNotFound
		}
		return doctor.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorsRepo) List(ctx context.Context, f doctor.ListFilter) ([]doctor.Doctor, int, error) {
	var w where

	if f.Search != nil {
		w.search(*f.Search, "d.full_name", "d.email", "d.license_number", "array_to_string(d.specializations, ' ')")
	}
	if f.Specialization != nil {
		w.add("EXISTS (SELECT 1 FROM unnest(d.specializations) s WHERE lower(s) = lower(?))", *f.Specialization)
	}
	if f.Approved != nil {
		w.add("d.is_approved = ?", *f.Approved)
	}

	return queryPage(ctx, r.pool, r.observer, "doctors.list",
		doctorColumns, "FROM doctors d", &w, "d.created_at DESC, d.id DESC", f.Limit, f.Offset,
		func(row pgx.Row, total *int) (doctor.Doctor, error) { return scanDoctor(row, total) },
	)
}

func (r *DoctorsRepo) Update(ctx context.Context, d doctor.Doctor) (doctor.Doctor, error) {
	var tag pgconn.CommandTag

	err := r.observe("doctors.update", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
			UPDATE doctors
			SET full_name = $2, email = $3, specializations = $4, license_number = $5,
			    years_of_experience = $6, contact_number = $7, updated_at = $8
			WHERE id = $1
		`, d.ID, d.FullName, d.Email, d.Specializations, d.LicenseNumber,
			d.YearsOfExperience, d.ContactNumber, d.UpdatedAt)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return doctor.Doctor{}, doctor.ErrDuplicate
		}
		return doctor.Doctor{}, err
	}
	if tag.RowsAffected() == 0 {
		return doctor.Doctor{}, doctor.ErrNotFound
	}
	return d, nil
}

func (r *DoctorsRepo) SetApproval(ctx context.Context, id string, approved bool) (doctor.Doctor, error) {
	var d doctor.Doctor

	err := r.observe("doctors.set_approval", func() error {
		var err error
		d, err = scanDoctor(r.pool.QueryRow(ctx, `
			UPDATE doctors d
			SET is_approved = $2, updated_at = $3
			WHERE d.id = $1
			RETURNING `+doctorColumns,
			id, approved, time.Now().UTC(),
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return doctor.Doctor{}, doctor.ErrNotFound
		}
		return doctor.Doctor{}, err
	}
	return d, nil
}

func (r *DoctorsRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("doctors.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return doctor.ErrNotFound
	}
	return nil
}
