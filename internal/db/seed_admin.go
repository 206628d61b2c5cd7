package db

import (
	"context"
	"errors"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap admin from ADMIN_EMAIL/ADMIN_PASSWORD
// unless a user with that email already exists.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) (bool, error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	u := user.New(user.CreateParams{
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		FullName:     cfg.AdminName,
		Role:         user.Role(cfg.AdminRole),
	})

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, first_name, last_name, full_name, role, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (email) DO NOTHING
		`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName, u.FullName, string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return false, err
	}

	return true, nil
}
