package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/medportal/internal/cache"
	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/db"
	httpx "github.com/geocoder89/medportal/internal/http"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/geocoder89/medportal/internal/queue/redisclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	startCtx, cancelStart := config.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(startCtx, observability.TracerConfig{
			ServiceName: "medportal-api",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	pool, err := db.NewPool(startCtx, cfg.DBURL, db.PoolOptions{
		AppName:  "medportal-api",
		MaxConns: 10,
		MinConns: 2,
	})
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := db.NewMigrator(pool, db.Migrations()).Up(startCtx)
	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "count", applied)

	created, err := db.EnsureAdminUser(startCtx, pool, cfg)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	// redis is optional; without it caches and lockout counters stay in process
	var store cache.Store = cache.New(30 * time.Second)
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.Connect(startCtx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, using in-memory cache", "err", err)
		} else {
			defer rdb.Close()
			store = cache.NewRedis(rdb, "medportal:")
			log.Info("redis cache enabled", "addr", cfg.RedisAddr)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	router := httpx.NewRouter(httpx.RouterDeps{
		Log:      log,
		Config:   cfg,
		Pool:     pool,
		Prom:     prom,
		Gatherer: reg,
		Cache:    store,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
