package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/medportal/internal/domain/doctor"
	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/domain/mapping"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/notifications"
	"github.com/geocoder89/medportal/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// DeliveryStore guards against sending the same notice twice.
type DeliveryStore interface {
	TryStart(ctx context.Context, kind, subjectID, jobID, recipient string) error
	MarkSent(ctx context.Context, kind, subjectID string, providerMessageID *string) error
	MarkFailed(ctx context.Context, kind, subjectID, errMsg string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type MappingLookup interface {
	GetByID(ctx context.Context, id string) (mapping.Mapping, error)
}

type DoctorLookup interface {
	GetByID(ctx context.Context, id string) (doctor.Doctor, error)
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	LockTTL       time.Duration
	ShutdownGrace time.Duration
}

type Deps struct {
	Jobs       JobsRepository
	Deliveries DeliveryStore
	Users      UserLookup
	Mappings   MappingLookup
	Doctors    DoctorLookup
	Notifier   notifications.Notifier
	Prom       *observability.Prom
	Metrics    *observability.JobMetrics
	Log        *slog.Logger
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	deliveries DeliveryStore
	users      UserLookup
	mappings   MappingLookup
	doctors    DoctorLookup
	notifier   notifications.Notifier
	prom       *observability.Prom
	metrics    *observability.JobMetrics
	log        *slog.Logger
	now        func() time.Time
	backoff    func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, d Deps) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = observability.NewJobMetrics()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	return &Worker{
		cfg:        cfg,
		repo:       d.Jobs,
		deliveries: d.Deliveries,
		users:      d.Users,
		mappings:   d.Mappings,
		doctors:    d.Doctors,
		notifier:   d.Notifier,
		prom:       d.Prom,
		metrics:    d.Metrics,
		log:        d.Log.With("worker_id", cfg.WorkerID),
		now:        func() time.Time { return time.Now().UTC() },
		backoff:    ExponentialBackoff,
	}
}

func (w *Worker) Metrics() *observability.JobMetrics { return w.metrics }

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	w.log.InfoContext(ctx, "worker_started", "concurrency", w.cfg.Concurrency)

	// in-flight jobs finish on their own context so a shutdown does not cut a send in half
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, jobCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker_shutting_down")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("worker_shutdown_grace_exceeded")
		cancelJobs()
		<-done
	}

	snap := w.metrics.Snapshot()
	w.log.Info("worker_stopped",
		"claimed", snap.Claimed,
		"done", snap.Done,
		"retried", snap.Retried,
		"failed", snap.Failed,
		"dead_lettered", snap.DeadLettered,
		"avg_ms", snap.Average().Milliseconds(),
		"max_ms", snap.Max.Milliseconds(),
	)
	for _, t := range snap.Types() {
		s := snap.ByType[t]
		w.log.Debug("worker_job_type_stats", "job_type", t, "runs", s.Runs, "done", s.Done, "failed", s.Failed, "avg_ms", s.Average().Milliseconds())
	}
	return nil
}

func (w *Worker) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(jobCtx)
		if err != nil {
			w.log.ErrorContext(ctx, "worker_step_failed", "err", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// reapLoop puts jobs abandoned by a crashed worker back in the queue.
func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.WarnContext(ctx, "requeue_stale_failed", "err", err)
				continue
			}
			if n > 0 {
				w.log.InfoContext(ctx, "requeued_stale_jobs", "count", n)
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) isReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}
