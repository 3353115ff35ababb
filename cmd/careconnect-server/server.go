package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/careconnect/careconnect/internal/config"
	"github.com/careconnect/careconnect/internal/domain/access"
	"github.com/careconnect/careconnect/internal/domain/dashboard"
	"github.com/careconnect/careconnect/internal/domain/identity"
	"github.com/careconnect/careconnect/internal/domain/nursing"
	"github.com/careconnect/careconnect/internal/domain/scheduling"
	"github.com/careconnect/careconnect/internal/platform/auth"
	"github.com/careconnect/careconnect/internal/platform/db"
	"github.com/careconnect/careconnect/internal/platform/middleware"
	"github.com/careconnect/careconnect/internal/platform/telemetry"
)

const (
	requestTimeout   = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
	revocationSweep  = time.Minute
	passwordHashCost = bcrypt.DefaultCost
)

// server bundles the echo instance with the collaborators that must be
// closed on shutdown.
type server struct {
	echo        *echo.Echo
	revocations *auth.TokenRevocationStore
	unsubscribe func()
}

func (s *server) Close() {
	s.unsubscribe()
	s.revocations.Close()
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	srv, err := newServer(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.Close()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires every domain onto a fresh echo instance. pool may be nil
// in tests that only exercise routes which never reach the database.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	metrics := telemetry.New()
	if pool != nil {
		metrics.RegisterPool(func() telemetry.PoolStat { return pool.Stat() })
	}

	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.SessionTTL)
	revocations := auth.NewTokenRevocationStore(revocationSweep)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger, metrics.Panic))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader, scheduling.IdempotencyKeyHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Tokens:      tokens,
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}))

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Nurse directory
	nursingSvc := nursing.NewService(nursing.NewNurseRepoPG(pool), logger)
	nursing.NewHandler(nursingSvc).RegisterRoutes(apiV1)

	// Identity
	identitySvc := identity.NewService(
		identity.NewUserRepoPG(pool),
		auth.NewPasswordHasher(passwordHashCost),
		tokens,
		revocations,
		metrics,
		logger,
		identity.Options{AllowAdminSignup: cfg.AllowAdminSignup},
	)
	unsubscribe := identitySvc.Subscribe(nurseProfileSubscriber(nursingSvc, logger))
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	// Appointments
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), nursingSvc, metrics, logger, loc)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	// Dashboard
	dashboard.NewHandler(dashboard.NewSelector(schedulingSvc, nursingSvc)).RegisterRoutes(apiV1)

	return &server{echo: e, revocations: revocations, unsubscribe: unsubscribe}, nil
}

// profileEnsurer is the part of the nurse directory the sign-up hook needs.
type profileEnsurer interface {
	EnsureProfile(ctx context.Context, id uuid.UUID, name, email string) (*nursing.Nurse, error)
}

// nurseProfileSubscriber gives every nurse who signs up a directory profile
// keyed by their identity id, so appointments booked with them show up in
// their assignment-scoped views.
func nurseProfileSubscriber(nurses profileEnsurer, logger zerolog.Logger) func(context.Context, identity.Event) {
	return func(ctx context.Context, ev identity.Event) {
		if ev.Kind != identity.EventRegistered || ev.Role != access.RoleNurse {
			return
		}
		if _, err := nurses.EnsureProfile(ctx, ev.UserID, ev.Name, ev.Email); err != nil {
			logger.Error().Err(err).Str("user_id", ev.UserID.String()).Msg("failed to create nurse profile")
			return
		}
		logger.Info().Str("user_id", ev.UserID.String()).Msg("nurse profile ready")
	}
}
