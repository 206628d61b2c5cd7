package postgres

import (
	"context"

	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/domain/patient"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterParams is everything a signup writes in one transaction.
// Exactly one of Patient or Doctor is set. Job is optional.
type RegisterParams struct {
	User    user.User
	Patient *patient.Patient
	Doctor  *doctor.Doctor
	Job     *job.CreateRequest
}

// AccountsRepo owns the multi-table account writes.
type AccountsRepo struct {
	observer
	pool   *pgxpool.Pool
	jobs   *JobsRepo
	tokens *RefreshTokensRepo
}

func NewAccountsRepo(pool *pgxpool.Pool, jobs *JobsRepo, tokens *RefreshTokensRepo, prom *observability.Prom) *AccountsRepo {
	return &AccountsRepo{pool: pool, jobs: jobs, tokens: tokens, observer: observer{prom: prom}}
}

func (r *AccountsRepo) Register(ctx context.Context, p RegisterParams) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("accounts.register", func() error {
		if err := insertUser(ctx, tx, p.User); err != nil {
			return err
		}

		switch {
		case p.Patient != nil:
			if err := insertPatient(ctx, tx, *p.Patient); err != nil {
				return err
			}
		case p.Doctor != nil:
			if err := insertDoctor(ctx, tx, *p.Doctor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.Job != nil && r.jobs != nil {
		if _, err := r.jobs.CreateTx(ctx, tx, *p.Job); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ChangePassword stores the new hash and revokes every refresh token the user holds.
func (r *AccountsRepo) ChangePassword(ctx context.Context, userID, hash string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = r.observe("accounts.change_password", func() error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
		`, userID, hash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}

		return r.tokens.RevokeAllForUser(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
