package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/saferoute/backend/internal/delivery/http"
	"github.com/saferoute/backend/internal/repository/postgres"
	"github.com/saferoute/backend/internal/service"
	applog "github.com/saferoute/backend/pkg/logger"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	zl, err := applog.New(getEnv("GO_ENV", "development"), getEnv("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if envErr != nil {
		zl.Info("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig(zl)

	// Storage: Postgres when configured, in-memory sessions otherwise
	var sessionRepo service.DataRepository
	if cfg.DatabaseURL != "" {
		pool, err := connectPostgres(cfg.DatabaseURL)
		if err != nil {
			zl.Warn("Could not connect to database, using in-memory sessions", zap.Error(err))
			sessionRepo = postgres.NewMemoryRepository()
		} else {
			defer pool.Close()
			zl.Info("Connected to PostgreSQL")
			sessionRepo = postgres.NewPostgresRepository(pool)
		}
	} else {
		sessionRepo = postgres.NewMemoryRepository()
	}

	// Dependency Injection: Services
	upstreamCfg := service.DefaultUpstreamConfig()
	upstreamCfg.Timeout = cfg.UpstreamTimeout
	upstreamCfg.Retries = cfg.UpstreamRetries
	overpassCfg := upstreamCfg
	overpassCfg.RatePerSecond = cfg.OverpassRPS

	incidentSvc, err := service.NewIncidentService(cfg.GDACSURL, upstreamCfg, cfg.IncidentCacheTTL, zl)
	if err != nil {
		zl.Fatal("Failed to create incident service", zap.Error(err))
	}
	weatherSvc := service.NewWeatherService(cfg.OpenMeteoURL, upstreamCfg, zl)
	overpassSvc := service.NewOverpassService(cfg.OverpassURL, overpassCfg, zl)
	routingSvc := service.NewRoutingService(cfg.GraphHopperURL, cfg.GraphHopperAPIKey, cfg.RoutingProfile, upstreamCfg, zl)

	riskSvc := service.NewRiskService(incidentSvc, weatherSvc, overpassSvc, zl)
	routeSvc := service.NewRouteService(routingSvc, riskSvc, sessionRepo, cfg.RouteWorkers, zl)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "SafeRoute API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,X-Session-ID",
		ExposeHeaders: "X-Session-ID",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(riskSvc, routeSvc, sessionRepo, zl))

	// Graceful shutdown
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited gracefully")
}

func connectPostgres(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := postgres.NewPostgresRepository(pool).EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
