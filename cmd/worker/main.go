package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bookline/videomeet/internal/adapters/database"
	"github.com/bookline/videomeet/internal/adapters/events"
	"github.com/bookline/videomeet/internal/adapters/providers/meeting"
	"github.com/bookline/videomeet/internal/application/services"
	"github.com/bookline/videomeet/internal/infrastructure/clients/postgres"
	"github.com/bookline/videomeet/internal/infrastructure/clients/redis"
	"github.com/bookline/videomeet/internal/infrastructure/observability"
	"github.com/bookline/videomeet/internal/jobs"
	"github.com/bookline/videomeet/pkg/config"
	"github.com/bookline/videomeet/pkg/statetoken"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize structured logging
	env := os.Getenv("ENV")
	if env == "" {
		env = "production"
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-worker", env)

	log.Info().
		Str("service", cfg.OTEL.ServiceName+"-worker").
		Str("version", cfg.OTEL.ServiceVersion).
		Str("env", env).
		Msg("Starting provisioning worker")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName+"-worker",
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()
	log.Info().Msg("Redis client initialized successfully")

	// Initialize adapters
	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	connectionAdapter := database.NewConnectionAdapter(pgClient)
	staffAdapter := database.NewStaffAdapter(pgClient)
	serviceAdapter := database.NewServiceAdapter(pgClient)

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	// Initialize services
	if cfg.StateToken.Secret == "" {
		log.Fatal().Msg("OAUTH_STATE_SECRET must be set")
	}
	signer := statetoken.NewSigner(cfg.StateToken.Secret)

	oauthService := services.NewOAuthService(
		connectionAdapter,
		staffAdapter,
		cfg.Zoom,
		cfg.Google,
		signer,
	)

	providerFactory := meeting.NewFactory(meeting.Deps{
		Tokens:      oauthService,
		Connections: connectionAdapter,
	})

	meetingService := services.NewMeetingService(
		appointmentAdapter,
		serviceAdapter,
		connectionAdapter,
		providerFactory,
		eventBus,
	)
	oauthService.SetMetrics(metrics)
	meetingService.SetMetrics(metrics)

	// Start the worker
	worker := jobs.NewWorker(meetingService, eventBus, cfg.Worker)
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker")
	}

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Worker shutting down...")
	worker.Stop()
	log.Info().Msg("Worker stopped")
}
