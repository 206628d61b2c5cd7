package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/medportal/internal/domain/notificationsdelivery"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationDeliveriesRepo records one delivery per (kind, subject) so a
// retried job never sends the same notice twice.
type NotificationDeliveriesRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool, observer: observer{prom: prom}}
}

// TryStart claims the delivery for jobID. It returns ErrAlreadySent when the
// notice went out before and ErrInProgress when another worker holds it.
func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, kind, subjectID, jobID, recipient string) error {
	return r.observe("deliveries.try_start", func() error {
		// 1) first attempt inserts the row
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (kind, subject_id, job_id, recipient, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, kind, subjectID, jobID, recipient)

		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}

		// 2) a failed row can be reclaimed; only one worker wins the flip
		tag, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $3,
			    recipient = $4,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND subject_id = $2 AND status = 'failed'
		`, kind, subjectID, jobID, recipient)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		// 3) sent already, or someone is sending right now
		var status string
		var sentAt *time.Time

		err = r.pool.QueryRow(ctx, `
			SELECT status, sent_at
			FROM notification_deliveries
			WHERE kind = $1 AND subject_id = $2
		`, kind, subjectID).Scan(&status, &sentAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// deleted between statements; the job retry will insert again
				return notificationsdelivery.ErrInProgress
			}
			return err
		}

		if sentAt != nil || status == "sent" {
			return notificationsdelivery.ErrAlreadySent
		}
		return notificationsdelivery.ErrInProgress
	})
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, kind, subjectID string, providerMessageID *string) error {
	return r.observe("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent',
			    sent_at = NOW(),
			    provider_message_id = $3,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND subject_id = $2
		`, kind, subjectID, providerMessageID)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, kind, subjectID, errMsg string) error {
	return r.observe("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed',
			    last_error = $3,
			    updated_at = NOW()
			WHERE kind = $1 AND subject_id = $2
		`, kind, subjectID, errMsg)
		return err
	})
}
