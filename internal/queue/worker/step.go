package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/domain/mapping"
	"github.com/geocoder89/medportal/internal/domain/notificationsdelivery"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/jobs"
	"github.com/geocoder89/medportal/internal/notifications"
	"github.com/geocoder89/medportal/internal/observability"
)

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent")

// ProcessOne claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.Claimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)

	if err != nil {
		w.record(j.Type, w.handleFailure(ctx, j, err), elapsed)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.record(j.Type, observability.OutcomeFailed, elapsed)
		return true, err
	}

	w.record(j.Type, observability.OutcomeDone, elapsed)
	w.log.InfoContext(ctx, "job_done", "job_id", j.ID, "job_type", j.Type, "duration_ms", elapsed.Milliseconds())
	return true, nil
}

func (w *Worker) record(jobType string, outcome observability.JobOutcome, d time.Duration) {
	w.metrics.Record(jobType, outcome, d)
	if w.prom != nil {
		w.prom.ObserveJob(jobType, outcome, d)
	}
}

// handleFailure reschedules with backoff or gives up, and returns the outcome.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) observability.JobOutcome {
	msg := cause.Error()
	attempt := j.Attempts + 1

	if errors.Is(cause, errPermanent) || attempt >= j.MaxAttempts {
		outcome := observability.OutcomeFailed
		if attempt >= j.MaxAttempts {
			outcome = observability.OutcomeDeadLettered
		}

		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.ErrorContext(ctx, "job_mark_failed_failed", "job_id", j.ID, "err", err)
		}
		w.log.WarnContext(ctx, "job_failed", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "outcome", outcome, "err", msg)
		return outcome
	}

	runAt := w.now().Add(w.backoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.log.ErrorContext(ctx, "job_reschedule_failed", "job_id", j.ID, "err", err)
	}

	w.log.WarnContext(ctx, "job_retry_scheduled", "job_id", j.ID, "job_type", j.Type, "attempt", attempt, "run_at", runAt, "err", msg)
	return observability.OutcomeRetry
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	switch p := payload.(type) {
	case jobs.SendWelcomePayload:
		return w.sendWelcome(ctx, j, p)
	case jobs.MappingAssignedPayload:
		return w.sendMappingAssigned(ctx, j, p)
	default:
		return fmt.Errorf("%w: no handler for %s", errPermanent, j.Type)
	}
}

func (w *Worker) sendWelcome(ctx context.Context, j job.Job, p jobs.SendWelcomePayload) error {
	u, err := w.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%w: user %s no longer exists", errPermanent, p.UserID)
		}
		return err
	}

	return w.deliver(ctx, notificationsdelivery.KindWelcome, u.ID, j.ID, u.Email, func(ctx context.Context) error {
		return w.notifier.SendWelcome(ctx, notifications.WelcomeInput{
			Email: u.Email,
			Name:  u.FullName,
			Role:  string(u.Role),
		})
	})
}

func (w *Worker) sendMappingAssigned(ctx context.Context, j job.Job, p jobs.MappingAssignedPayload) error {
	m, err := w.mappings.GetByID(ctx, p.MappingID)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			return fmt.Errorf("%w: mapping %s no longer exists", errPermanent, p.MappingID)
		}
		return err
	}

	d, err := w.doctors.GetByID(ctx, m.DoctorID)
	if err != nil {
		return err
	}

	return w.deliver(ctx, notificationsdelivery.KindMappingAssigned, m.ID, j.ID, d.Email, func(ctx context.Context) error {
		return w.notifier.SendMappingAssigned(ctx, notifications.MappingAssignedInput{
			DoctorEmail: d.Email,
			DoctorName:  d.FullName,
			PatientName: m.PatientName,
			MappingID:   m.ID,
			Symptoms:    m.Symptoms,
		})
	})
}

// deliver claims the (kind, subject) delivery row, sends, and records the outcome.
// A notice that already went out is skipped without error.
func (w *Worker) deliver(ctx context.Context, kind, subjectID, jobID, recipient string, send func(context.Context) error) error {
	err := w.deliveries.TryStart(ctx, kind, subjectID, jobID, recipient)
	if err != nil {
		if errors.Is(err, notificationsdelivery.ErrAlreadySent) {
			w.log.InfoContext(ctx, "notification_already_sent", "kind", kind, "subject_id", subjectID)
			w.countNotification(kind, "skipped")
			return nil
		}
		return err
	}

	if err := send(ctx); err != nil {
		if merr := w.deliveries.MarkFailed(ctx, kind, subjectID, err.Error()); merr != nil {
			w.log.WarnContext(ctx, "delivery_mark_failed_failed", "kind", kind, "err", merr)
		}
		w.countNotification(kind, "failed")
		return err
	}

	w.countNotification(kind, "sent")
	return w.deliveries.MarkSent(ctx, kind, subjectID, nil)
}

func (w *Worker) countNotification(kind, result string) {
	if w.prom != nil {
		w.prom.CountNotification(kind, result)
	}
}
