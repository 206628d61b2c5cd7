package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/medportal/internal/auth"
	"github.com/geocoder89/medportal/internal/cache"
	"github.com/geocoder89/medportal/internal/config"
	"github.com/geocoder89/medportal/internal/domain/user"
	"github.com/geocoder89/medportal/internal/http/handlers"
	"github.com/geocoder89/medportal/internal/http/middlewares"
	"github.com/geocoder89/medportal/internal/observability"
	"github.com/geocoder89/medportal/internal/repo/postgres"
	"github.com/geocoder89/medportal/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const apiRateLimitPerMinute = 300

type RouterDeps struct {
	Log      *slog.Logger
	Config   config.Config
	Pool     *pgxpool.Pool
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Cache    cache.Store
}

func NewRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("medportal-api"))
	if d.Prom != nil {
		r.Use(d.Prom.HTTPMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(cfg.IsProd()))
	r.Use(middlewares.CORS(cfg.CORSOrigins))

	// health
	var pinger handlers.Pinger
	if d.Pool != nil {
		pinger = d.Pool
	}
	h := handlers.NewHealthHandler(pinger)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	store := d.Cache
	if store == nil {
		store = cache.New(30 * time.Second)
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	patientsRepo := postgres.NewPatientsRepo(d.Pool, d.Prom)
	doctorsRepo := postgres.NewDoctorsRepo(d.Pool, d.Prom)
	mappingsRepo := postgres.NewMappingsRepo(d.Pool, d.Prom)
	settingsRepo := postgres.NewSettingsRepo(d.Pool, d.Prom)
	statsRepo := postgres.NewStatsRepo(d.Pool, d.Prom)
	jobsRepo := postgres.NewJobsRepo(d.Pool, d.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(d.Pool)
	accountsRepo := postgres.NewAccountsRepo(d.Pool, jobsRepo, refreshRepo, d.Prom)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	// handlers
	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerDeps{
		Users:    usersRepo,
		Accounts: accountsRepo,
		Tokens:   refreshRepo,
		Settings: settingsRepo,
		Guard:    security.NewLoginGuard(store, security.DefaultLockWindow),
		Patients: patientsRepo,
		Doctors:  doctorsRepo,
		JWT:      jwtManager,
		Config:   cfg,
	})
	patientsHandler := handlers.NewPatientsHandler(patientsRepo, mappingsRepo)
	doctorsHandler := handlers.NewDoctorsHandler(doctorsRepo)
	mappingsHandler := handlers.NewMappingsHandler(handlers.MappingsHandlerDeps{
		Mappings: mappingsRepo,
		Patients: patientsRepo,
		Doctors:  doctorsRepo,
		Jobs:     jobsRepo,
		Settings: settingsRepo,
	})
	usersHandler := handlers.NewUsersHandler(usersRepo)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo)
	dashboardHandler := handlers.NewDashboardHandler(statsRepo, store)
	adminJobsHandler := handlers.NewAdminJobsHandler(jobsRepo)

	authLimiter := middlewares.NewRateLimiter(store, "auth", cfg.AuthRateLimit, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(store, "api", apiRateLimitPerMinute, time.Minute)

	api := r.Group("/api/v1")
	api.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	api.Use(middlewares.RequireJSON())

	// public auth routes
	authGroup := api.Group("/auth")
	{
		limited := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

		authGroup.POST("/register/", limited, authHandler.Register)
		authGroup.POST("/login/", limited, authHandler.Login)
		authGroup.POST("/token/refresh/", limited, authHandler.Refresh)
		authGroup.POST("/logout/", authHandler.Logout)
	}

	// everything below needs a valid access token
	protected := api.Group("")
	protected.Use(authMW.RequireAuth())
	protected.Use(apiLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	admin := authMW.RequireRole(user.RoleAdmin)
	adminOrDoctor := authMW.RequireRole(user.RoleAdmin, user.RoleDoctor)
	adminOrPatient := authMW.RequireRole(user.RoleAdmin, user.RolePatient)

	protected.GET("/auth/profile/", authHandler.Profile)
	protected.PUT("/auth/profile/", authHandler.UpdateProfile)
	protected.POST("/auth/change-password/", authHandler.ChangePassword)

	patients := protected.Group("/patients")
	{
		patients.GET("/", patientsHandler.List)
		patients.POST("/", adminOrDoctor, patientsHandler.Create)
		patients.GET("/:id/", patientsHandler.GetByID)
		patients.PUT("/:id/", adminOrPatient, patientsHandler.Update)
		patients.DELETE("/:id/", admin, patientsHandler.Delete)
	}

	doctors := protected.Group("/doctors")
	{
		doctors.GET("/", doctorsHandler.List)
		doctors.POST("/", admin, doctorsHandler.Create)
		doctors.GET("/:id/", doctorsHandler.GetByID)
		doctors.PUT("/:id/", adminOrDoctor, doctorsHandler.Update)
		doctors.DELETE("/:id/", admin, doctorsHandler.Delete)
		doctors.PATCH("/:id/approval/", admin, doctorsHandler.SetApproval)
	}

	protected.GET("/doctor/my-patients/", authMW.RequireRole(user.RoleDoctor), patientsHandler.MyPatients)

	mappings := protected.Group("/mappings")
	{
		mappings.GET("/", mappingsHandler.List)
		mappings.POST("/", admin, mappingsHandler.Create)
		mappings.GET("/patient/:patient_id/", mappingsHandler.ByPatient)
		mappings.GET("/:id/", mappingsHandler.GetByID)
		mappings.PUT("/:id/", adminOrDoctor, mappingsHandler.Update)
		mappings.DELETE("/:id/", admin, mappingsHandler.Delete)
	}

	users := protected.Group("/users", admin)
	{
		users.GET("/", usersHandler.List)
		users.GET("/:id/", usersHandler.GetByID)
		users.PUT("/:id/", usersHandler.Update)
		users.DELETE("/:id/", usersHandler.Delete)
	}

	sys := protected.Group("/system-settings", admin)
	{
		sys.GET("/", settingsHandler.Get)
		sys.PUT("/", settingsHandler.Update)
	}

	protected.GET("/dashboard/stats/", dashboardHandler.Stats)
	protected.GET("/reports/summary/", admin, dashboardHandler.Report)

	jobs := protected.Group("/admin/jobs", admin)
	{
		jobs.GET("/", adminJobsHandler.List)
		jobs.POST("/retry-failed/", adminJobsHandler.RetryFailed)
		jobs.GET("/:id/", adminJobsHandler.GetByID)
		jobs.POST("/:id/retry/", adminJobsHandler.Retry)
	}

	return r
}
