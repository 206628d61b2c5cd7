package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/medportal/internal/domain/settings"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SettingsRepo {
	return &SettingsRepo{pool: pool, observer: observer{prom: prom}}
}

// Get returns the singleton row, or the defaults if it was never written.
func (r *SettingsRepo) Get(ctx context.Context) (settings.SystemSettings, error) {
	var s settings.SystemSettings

	err := r.observe("settings.get", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT auto_logout, session_timeout, email_notifications, data_retention,
			       max_login_attempts, password_min_length, updated_by, updated_at
			FROM system_settings
			WHERE id = 1
		`).Scan(
			&s.AutoLogout, &s.SessionTimeout, &s.EmailNotifications, &s.DataRetention,
			&s.MaxLoginAttempts, &s.PasswordMinLength, &s.UpdatedBy, &s.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return settings.Defaults(), nil
		}
		return settings.SystemSettings{}, err
	}
	return s, nil
}

func (r *SettingsRepo) Update(ctx context.Context, req settings.UpdateRequest, updatedBy string) (settings.SystemSettings, error) {
	s, err := r.Get(ctx)
	if err != nil {
		return settings.SystemSettings{}, err
	}

	s.Apply(req)
	s.UpdatedBy = &updatedBy
	s.UpdatedAt = time.Now().UTC()

	err = r.observe("settings.update", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO system_settings (id, auto_logout, session_timeout, email_notifications,
				data_retention, max_login_attempts, password_min_length, updated_by, updated_at)
			VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				auto_logout = EXCLUDED.auto_logout,
				session_timeout = EXCLUDED.session_timeout,
				email_notifications = EXCLUDED.email_notifications,
				data_retention = EXCLUDED.data_retention,
				max_login_attempts = EXCLUDED.max_login_attempts,
				password_min_length = EXCLUDED.password_min_length,
				updated_by = EXCLUDED.updated_by,
				updated_at = EXCLUDED.updated_at
		`, s.AutoLogout, s.SessionTimeout, s.EmailNotifications, s.DataRetention,
			s.MaxLoginAttempts, s.PasswordMinLength, s.UpdatedBy, s.UpdatedAt)
		return err
	})
	if err != nil {
		return settings.SystemSettings{}, err
	}
	return s, nil
}
