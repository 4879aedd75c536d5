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
	"github.com/zatekoja/hospitalqueue/internal/adapters/events"
	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/api/routes"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

// The stream server fans queue events out to display screens and patient
// phones. It only reads the Redis bus, so it scales independently of the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", cfg.Environment)

	log.Info().Msg("Starting SSE Server...")

	// Redis is required; an in-process bus would never see the API's events
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	sseHandler := handlers.NewSSEHandler(eventBus, entities.NewDepartmentSet(cfg.Queue.Departments)).
		WithHeartbeat(cfg.Server.HeartbeatInterval)

	router := routes.NewRouter(
		routes.Handlers{SSE: sseHandler},
		nil,
		nil,
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.SSEPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  30 * time.Second,  // Longer timeout for SSE
		WriteTimeout: 0,                 // No timeout for SSE streaming
		IdleTimeout:  120 * time.Second, // Allow long-lived connections
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("SSE Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("SSE Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Int("clients", sseHandler.ClientCount()).Msg("SSE Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the bus ends every open stream so Shutdown does not wait on them
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("SSE Server stopped")
}
