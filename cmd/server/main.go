package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_handler "vmdesk.app/internal/adapters/handler/http"
	"vmdesk.app/internal/adapters/handler/mqtt"
	redis_adapter "vmdesk.app/internal/adapters/queue/redis"
	"vmdesk.app/internal/adapters/repository/pg"
	"vmdesk.app/internal/adapters/vmapi"
	"vmdesk.app/internal/config"
	"vmdesk.app/internal/core/circuitbreaker"
	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/ports"
	"vmdesk.app/internal/core/services"
	"vmdesk.app/internal/core/tracing"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Initialize structured logger
	if err := logger.Init(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Close()
	logger.Info("Starting vmdesk server", "version", version, "dry_run", cfg.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	if cfg.EnableTracing {
		shutdownTracing, err := tracing.Init(cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			logger.Info("Tracing initialized", "endpoint", cfg.OTLPEndpoint)
			defer func() {
				if err := shutdownTracing(context.Background()); err != nil {
					logger.Error("Failed to shutdown tracing", "error", err)
				}
			}()
		}
	}

	// Initialize adapters
	repo, err := pg.NewRepository(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to init postgres", "error", err)
		log.Fatalf("failed to init postgres: %v", err)
	}

	redisAdapter, redisClient, err := redis_adapter.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to init redis", "error", err)
		log.Fatalf("failed to init redis: %v", err)
	}
	dlq := redis_adapter.NewDeadLetterQueue(redisClient)

	provider, breaker := newProvider(cfg)

	// Initialize domain services
	orchestrator := services.NewOrchestrator(provider, services.NewEventObserver(redisAdapter), cfg.ProjectIDs)
	runService := services.NewRunService(repo, redisAdapter, redisAdapter, dlq, orchestrator)

	db, err := repo.DB()
	if err != nil {
		log.Fatalf("failed to get database handle: %v", err)
	}
	var breakers []*circuitbreaker.CircuitBreaker
	if breaker != nil {
		breakers = append(breakers, breaker)
	}
	healthService := services.NewHealthService(db, redisClient, version, breakers...)

	worker := services.NewWorker(runService, cfg.WorkerConcurrency)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil {
			logger.Error("Worker stopped", "error", err)
		}
	}()

	monitor := services.NewRunMonitor(repo, redisAdapter, cfg.RunStaleAfter)
	go monitor.Start(ctx)

	// Initialize HTTP handlers
	hub := http_handler.NewHub(redisAdapter)
	go hub.Run(ctx)
	go hub.StatusConsumer(ctx)
	go hub.RunUpdateConsumer(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case alert := <-monitor.Alerts():
				hub.Broadcast(http_handler.Message{Type: "run_alert", Payload: alert})
			}
		}
	}()

	// Initialize MQTT Publisher
	if cfg.MQTTBroker != "" {
		mqttPublisher, err := mqtt.NewPublisher(redisAdapter, cfg.MQTTBroker)
		if err != nil {
			logger.Error("Failed to init MQTT publisher", "error", err)
		} else {
			mqttPublisher.Start(ctx)
			defer mqttPublisher.Close()
			logger.Info("MQTT Publisher started")
		}
	}

	httpServer := http_handler.NewServer(runService, healthService, hub, dlq, http_handler.WithMetrics(cfg.EnableMetrics))

	// Start HTTP Server
	go func() {
		logger.Info("HTTP Server starting", "port", cfg.HTTPPort)
		if err := httpServer.Run(":" + cfg.HTTPPort); err != nil {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	// The worker drains in-flight runs before returning.
	<-workerDone
	if err := redisClient.Close(); err != nil {
		logger.Warn("Failed to close redis client", "error", err)
	}
	logger.Info("Server stopped")
}

// newProvider returns the computer provider and the breaker guarding it, if any.
func newProvider(cfg *config.Config) (ports.ComputerProvider, *circuitbreaker.CircuitBreaker) {
	if cfg.DryRun {
		logger.Info("Dry run, no remote computers will be opened")
		return vmapi.NewDryRunProvider(2 * time.Second), nil
	}
	client := vmapi.NewClient(vmapi.Options{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		ModelAPIKey:   cfg.ModelAPIKey,
		Model:         cfg.PromptModel,
		MaxIterations: cfg.PromptMaxIterations,
		PromptTimeout: cfg.PromptTimeout,
	})
	return vmapi.NewProvider(client), client.Breaker()
}
