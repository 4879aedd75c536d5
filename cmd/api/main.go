package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/api/routes"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/bootstrap"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/notifications"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	messaging, closeMessaging := bootstrap.OpenMessaging(cfg)
	defer closeMessaging()
	if cfg.Store.Driver == "postgres" {
		repos.WithStaffCache(messaging.Cache)
	}

	sender, err := newSMSSender(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SMS sender")
	}

	svc, err := bootstrap.NewServices(cfg, repos, messaging.EventBus, messaging.Cache, sender, clock.Real(), metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	svc.Events.Start(ctx)

	// Evict display boards and averages as queues move
	invalidation := services.NewCacheInvalidationService(
		messaging.Cache, messaging.EventBus, svc.Estimator, middleware.DisplayCacheKeys)
	if err := invalidation.Start(); err != nil {
		log.Warn().Err(err).Msg("Cache invalidation disabled")
	} else {
		defer invalidation.Stop()
	}
	if cfg.Queue.StatsCacheTTL > 0 {
		go services.NewCacheWarmingService(svc.Estimator, svc.Departments).
			StartPeriodicWarming(ctx, cfg.Queue.StatsCacheTTL/2)
	}

	// Initialize handlers
	sseHandler := handlers.NewSSEHandler(messaging.EventBus, svc.Departments).
		WithHeartbeat(cfg.Server.HeartbeatInterval)

	router := routes.NewRouter(
		routes.Handlers{
			Queue:   handlers.NewQueueHandler(svc.Queue, svc.Dispatch),
			Lab:     handlers.NewLabHandler(svc.LabGate, svc.LabRequests),
			Patient: handlers.NewPatientHandler(svc.Patients),
			Display: handlers.NewDisplayHandler(svc.Display),
			SSE:     sseHandler,
		},
		middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, repos.Staff),
		middleware.NewCacheMiddleware(messaging.Cache, cfg.Server.DisplayCacheTTL),
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// streams are served from this process too, so writes are unbounded
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("store", cfg.Store.Driver).Msg("Queue API starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Drain pending events before the bus closes
	svc.Events.Close()

	log.Info().Msg("Server stopped")
}

func newSMSSender(cfg *config.Config) (providers.SMSSender, error) {
	switch cfg.Notifications.Provider {
	case "http":
		return notifications.NewHTTPSMSSender(
			cfg.Notifications.GatewayURL,
			cfg.Notifications.APIKey,
			cfg.Notifications.SenderID,
			cfg.Notifications.Timeout,
		)
	default:
		log.Info().Msg("SMS provider is mock; messages are logged only")
		return notifications.NewLogSender(), nil
	}
}
