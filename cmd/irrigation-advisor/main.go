package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/uvsolutions/irrigation-advisor/internal/advisor"
	httpapi "github.com/uvsolutions/irrigation-advisor/internal/api/http"
	"github.com/uvsolutions/irrigation-advisor/internal/config"
	"github.com/uvsolutions/irrigation-advisor/internal/metrics"
	"github.com/uvsolutions/irrigation-advisor/internal/scheduler"
	"github.com/uvsolutions/irrigation-advisor/internal/station"
	"github.com/uvsolutions/irrigation-advisor/internal/store"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
	"github.com/uvsolutions/irrigation-advisor/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Durable site, visit and threshold records.
	fileStore, err := store.Open(cfg.DataFile)
	if err != nil {
		log.Fatalf("failed to open data file: %v", err)
	}

	// Site-to-station assignments with the configured default.
	directory, err := station.LoadDirectory(cfg.StationsFile, cfg.DefaultStation())
	if err != nil {
		log.Fatalf("failed to load stations file: %v", err)
	}

	m := metrics.New()

	// Open-Meteo behind a TTL cache. The persisted snapshot seeds the
	// fallback so recommendations survive a cold start with no network.
	provider := providers.NewOpenMeteoProvider(httpClient, cfg.Timezone)
	cache := weather.NewCache(m.WrapProvider(provider), weather.CacheConfig{
		FullTTL:         cfg.FullTTL,
		ForecastTTL:     cfg.ForecastTTL,
		FullTimeout:     cfg.FullTimeout,
		ForecastTimeout: cfg.ForecastTimeout,
		Fallback:        fileStore.FallbackSnapshot(),
	}, m)

	tables, err := cfg.SoilTables()
	if err != nil {
		log.Fatalf("failed to load soil tables: %v", err)
	}

	// Core service orchestrating weather and the moisture model.
	service := advisor.NewService(advisor.NewEngine(tables), cache, directory, m)

	// Scheduler that periodically warms station weather.
	sched := scheduler.New(directory, cache, fileStore, cfg.FetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "irrigation-advisor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "irrigation-advisor",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Handlers{
		Store:    fileStore,
		Advisor:  service,
		Cache:    cache,
		Stations: directory,
		Resolver: station.NewResolver(cfg.GeocoderAPIKey),
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
