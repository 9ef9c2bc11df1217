package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/emosense/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/emosense/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/emosense/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// AnalysisService runs inference and reports provider readiness
type AnalysisService interface {
	handler.Analyzer
	handler.ProviderChecker
}

// StatsStore is the read side of the audit store used by the API
type StatsStore interface {
	handler.MoodStatsReader
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Service AnalysisService
	// Store is nil when no audit store is configured
	Store StatsStore
	// Gatherer backs /metrics, prometheus.DefaultGatherer when nil
	Gatherer prometheus.Gatherer
	// RateLimitMax is the number of analyze requests per minute per client IP
	RateLimitMax int
	// BodyLimit caps request bodies, base64 images included
	BodyLimit int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 10 * 1024 * 1024
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "EmoSense API",
		BodyLimit:    bodyLimit,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	store := r.deps.Store

	healthHandler := handler.NewHealthHandler(r.deps.Service, pingerOrNil(store))
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	gatherer := r.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiGroup := r.app.Group("/api")

	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.RateLimitMax,
		Window: time.Minute,
	})

	analyzeHandler := handler.NewAnalyzeHandler(r.deps.Service, r.logger)
	apiGroup.Post("/analyze", r.rateLimiter.Handler(), analyzeHandler.Analyze)

	statsHandler := handler.NewStatsHandler(readerOrNil(store))
	apiGroup.Get("/stats/moods", statsHandler.Moods)

	r.app.Use(func(c *fiber.Ctx) error {
		return domain.ErrNotFound
	})
}

// pingerOrNil and readerOrNil keep a nil store a nil interface
func pingerOrNil(s StatsStore) handler.Pinger {
	if s == nil {
		return nil
	}
	return s
}

func readerOrNil(s StatsStore) handler.MoodStatsReader {
	if s == nil {
		return nil
	}
	return s
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones up to the
// context deadline
func (r *Router) Shutdown(ctx context.Context) error {
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}
	return r.app.ShutdownWithContext(ctx)
}
