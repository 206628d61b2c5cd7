package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/db"
	"github.com/geocoder89/medportal/internal/notifications"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/geocoder89/medportal/internal/queue/worker"
	"github.com/geocoder89/medportal/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "medportal-worker",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			defer func() {
				sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, db.PoolOptions{
		AppName:  "medportal-worker",
		MaxConns: int32(cfg.WorkerConcurrency + 2),
	})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(log),
		notifications.ProtectedNotifierConfig{
			Timeout:          3 * time.Second,
			FailureThreshold: 3,
			Cooldown:         15 * time.Second,
			OnStateChange: func(from, to notifications.BreakerState) {
				log.Warn("notifier_circuit_changed", "from", from.String(), "to", to.String())
			},
		},
	)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  500 * time.Millisecond,
		WorkerID:      workerID,
		Concurrency:   cfg.WorkerConcurrency,
		LockTTL:       2 * time.Minute,
		ShutdownGrace: 10 * time.Second,
	}, worker.Deps{
		Jobs:       postgres.NewJobsRepo(pool, prom),
		Deliveries: postgres.NewNotificationDeliveriesRepo(pool, prom),
		Users:      postgres.NewUsersRepo(pool, prom),
		Mappings:   postgres.NewMappingsRepo(pool, prom),
		Doctors:    postgres.NewDoctorsRepo(pool, prom),
		Notifier:   notifier,
		Prom:       prom,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           w.HealthHandler(pool, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)

	log.Info("worker shutdown complete")
}
