package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/patient360/api/internal/config"
	"github.com/patient360/api/internal/domain/action"
	"github.com/patient360/api/internal/domain/copilot"
	"github.com/patient360/api/internal/domain/note"
	"github.com/patient360/api/internal/domain/patient"
	"github.com/patient360/api/internal/platform/db"
	"github.com/patient360/api/internal/platform/middleware"
	"github.com/patient360/api/internal/platform/websocket"
)

const maxRequestBody = "1M"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Patient 360 API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBPoolMinSize, cfg.DBPoolMaxSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Int32("min_conns", cfg.DBPoolMinSize).Int32("max_conns", cfg.DBPoolMaxSize).Msg("connected to database")

	svcs, err := newServices(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize services")
	}

	e := newEcho(cfg, logger, pool, svcs)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, svcs *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAccept, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(maxRequestBody))

	e.GET("/health", db.HealthHandler(pinger, db.HealthStatus{
		AzureAIConfigured:     cfg.HasAzureAI(),
		HostedModelConfigured: cfg.HasHostedModel(),
		HostedModelProvider:   cfg.LLMProvider,
		Version:               version,
	}))
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    cfg.AppName,
			"version": version,
			"health":  "/health",
		})
	})

	patients := e.Group("/patients")
	patients.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	patients.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	patients.Use(middleware.Audit(logger))

	patient.NewHandler(svcs.patients, logger).RegisterRoutes(patients)
	note.NewHandler(svcs.notes).RegisterRoutes(patients)
	action.NewHandler(svcs.actions).RegisterRoutes(patients)
	copilot.NewHandler(svcs.copilot, websocket.NewUpgrader(cfg.CORSOrigins)).RegisterRoutes(patients)

	return e
}
