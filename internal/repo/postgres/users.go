package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, full_name, role, is_active, created_at, updated_at`

type UsersRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, observer: observer{prom: prom}}
}

func scanUser(row pgx.Row, extra ...any) (user.User, error) {
	var u user.User
	var role string

	dest := []any{
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.FullName, &role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			strings.ToLower(strings.TrimSpace(email)),
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, u user.User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		u.ID, u.Email, u.Username, u.PasswordHash,
		u.FirstName, u.LastName, u.FullName, string(u.Role), u.IsActive,
		u.CreatedAt, u.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	return err
}

func (r *UsersRepo) List(ctx context.Context, f user.ListFilter) ([]user.User, int, error) {
	var w where

	if f.Search != nil {
		w.search(*f.Search, "full_name", "email", "username")
	}
	if f.Role != nil {
		w.add("role = ?", string(*f.Role))
	}
	if f.IsActive != nil {
		w.add("is_active = ?", *f.IsActive)
	}

	return queryPage(ctx, r.pool, r.observer, "users.list",
		userColumns, "FROM users", &w, "created_at DESC, id DESC", f.Limit, f.Offset,
		func(row pgx.Row, total *int) (user.User, error) { return scanUser(row, total) },
	)
}

// Update writes admin-editable fields. Name and email follow onto the owned
// profile; role changes do not create or drop one.
func (r *UsersRepo) Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
		u.FirstName, u.LastName = user.SplitName(u.FullName)
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	u.UpdatedAt = time.Now().UTC()

	return u, r.save(ctx, "users.update", u, nil)
}

// save writes u and copies its name and email onto the patient or doctor
// profile the user owns, in one transaction. contact, when set, replaces the
// profile's contact number.
func (r *UsersRepo) save(ctx context.Context, op string, u user.User, contact *string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe(op, func() error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET email = $2, first_name = $3, last_name = $4, full_name = $5,
			    role = $6, is_active = $7, updated_at = $8
			WHERE id = $1
		`, u.ID, u.Email, u.FirstName, u.LastName, u.FullName, string(u.Role), u.IsActive, u.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		// a role change can leave the old profile behind; keep both in step
		for _, table := range []string{"patients", "doctors"} {
			_, err = tx.Exec(ctx, `
				UPDATE `+table+`
				SET full_name = $2,
				    email = $3,
				    contact_number = COALESCE($4, contact_number),
				    updated_at = NOW()
				WHERE user_id = $1
			`, u.ID, u.FullName, u.Email, contact)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	}
	return tx.Commit(ctx)
}

// UpdateProfile applies a self-service edit to the user and, when given, the
// contact number on the linked patient or doctor profile.
func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.FirstName != nil || req.LastName != nil {
		u.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	u.UpdatedAt = time.Now().UTC()

	if err := r.save(ctx, "users.update_profile", u, req.ContactNumber); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
