package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/saturnino-fabrica-de-software/emosense/internal/api"
	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/config"
	"github.com/saturnino-fabrica-de-software/emosense/internal/database"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/events"
	"github.com/saturnino-fabrica-de-software/emosense/internal/face"
	"github.com/saturnino-fabrica-de-software/emosense/internal/generation"
	"github.com/saturnino-fabrica-de-software/emosense/internal/metrics"
	"github.com/saturnino-fabrica-de-software/emosense/internal/repository"
	"github.com/saturnino-fabrica-de-software/emosense/internal/service"
	"github.com/saturnino-fabrica-de-software/emosense/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadModel never stops startup: a missing, corrupt or incompatible artifact
// leaves the model nil, vision degrades to Neutral and /ready reports it.
func loadModel(logger *slog.Logger, path string) *classifier.Model {
	model, err := classifier.Load(path)
	if err == nil {
		return model
	}
	if errors.Is(err, domain.ErrModelUnavailable) {
		logger.Warn("model not found, vision will degrade to neutral", slog.String("path", path))
	} else {
		logger.Error("model unusable, vision will degrade to neutral",
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
	return nil
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting EmoSense API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.EmotionProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := loadModel(logger, cfg.ModelPath)

	emotionProvider, err := face.NewEmotionProvider(ctx, cfg, model)
	if err != nil {
		return fmt.Errorf("failed to create emotion provider: %w", err)
	}

	generator := generation.NewClient(generation.Config{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaModel,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithGenerationTimeout(cfg.GenerationTimeout),
	}
	deps := &api.Dependencies{
		Gatherer:     registry,
		RateLimitMax: cfg.RateLimitMax,
	}

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		repo := repository.NewAnalysisRepository(pool)
		opts = append(opts, service.WithStore(repo))
		deps.Store = repo

		aggregator := metrics.NewAggregator(repo, m, logger, time.Minute, 24*time.Hour)
		go aggregator.Start(ctx)
		defer aggregator.Stop()

		logger.Info("analysis store enabled")
	}

	var sinks events.Fanout
	if cfg.HasMQTT() {
		publisher, err := events.Connect(events.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to mqtt broker: %w", err)
		}
		sinks = append(sinks, publisher)
		logger.Info("mqtt analysis events enabled", slog.String("topic", cfg.MQTTTopic))
	}
	if cfg.HasWebhook() {
		sinks = append(sinks, webhook.New(webhook.Config{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret}, logger))
		logger.Info("webhook analysis events enabled")
	}
	if len(sinks) > 0 {
		defer sinks.Close()
		opts = append(opts, service.WithEvents(sinks))
	}

	svc := service.NewAnalyzeService(emotionProvider, generator, logger, opts...)
	deps.Service = svc

	// Setup router
	router := api.NewRouter(logger, deps)
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	// audit inserts and events still in flight
	svc.Wait()
	logger.Info("server stopped")

	return nil
}
