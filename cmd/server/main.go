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

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/teamroom/internal/api"
	"github.com/eldtechnologies/teamroom/internal/api/middleware"
	"github.com/eldtechnologies/teamroom/internal/broadcast"
	"github.com/eldtechnologies/teamroom/internal/chat"
	"github.com/eldtechnologies/teamroom/internal/config"
	"github.com/eldtechnologies/teamroom/internal/generator"
	"github.com/eldtechnologies/teamroom/internal/handlers"
	"github.com/eldtechnologies/teamroom/internal/persona"
	"github.com/eldtechnologies/teamroom/internal/store"
	"github.com/eldtechnologies/teamroom/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.EnableTracing,
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}

	backend := cfg.ResolvedStoreBackend()
	ds, err := openStore(ctx, cfg, backend, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", backend).Msg("store unavailable")
	}
	defer ds.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	personas := persona.Default()
	if cfg.PersonasFile != "" {
		personas, err = persona.LoadFile(cfg.PersonasFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.PersonasFile).Msg("persona catalog invalid")
		}
	}
	logger.Info().Int("personas", personas.Len()).Msg("persona catalog loaded")

	gen, provider, err := generator.New(generator.Config{
		Provider:        cfg.LLMProvider,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("generator setup failed")
	}
	logger.Info().Str("provider", provider).Msg("reply generator ready")

	// Local subscribers always read from the hub. With Redis, publishes go
	// through pub/sub and the relay feeds every instance's hub.
	hub := broadcast.NewHub(logger, broadcast.DefaultBuffer)
	var channel broadcast.Channel = hub
	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	if redisStore != nil {
		channel = broadcast.NewRedisChannel(redisStore.Client())
		relay := broadcast.NewRelay(redisStore.Client(), hub, logger)
		go func() {
			defer close(relayDone)
			if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("broadcast relay stopped")
			}
		}()
	} else {
		close(relayDone)
	}

	orch := chat.NewOrchestrator(chat.Deps{
		Store:     ds,
		Personas:  personas,
		Generator: gen,
		Channel:   channel,
		Logger:    logger,
	}, chat.Options{
		Window:               cfg.ContextWindow,
		DelayMin:             cfg.ReplyDelayMin,
		DelayMax:             cfg.ReplyDelayMax,
		GenerationTimeout:    cfg.GenerationTimeout,
		GenerationRetries:    cfg.GenerationRetries,
		PersistRetries:       cfg.PersistRetries,
		RetryInitialInterval: cfg.RetryInitialInterval,
		MaxConcurrent:        cfg.MaxConcurrentGenerations,
		MaxTokens:            cfg.ReplyMaxTokens,
		Temperature:          cfg.ReplyTemperature,
	})

	rooms := chat.NewRoomRegistry(ds, personas, logger)
	router := api.NewRouter(logger, handlers.Services{
		Store:    ds,
		Backend:  backend,
		Redis:    redisStore,
		Personas: personas,
		Rooms:    rooms,
		Users:    chat.NewDirectory(ds, rooms, logger),
		History:  chat.NewHistoryReader(ds, personas),
		Sender:   orch,
		Hub:      hub,
		Logger:   logger,
	}, api.RouterConfig{
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// Event streams never go idle on their own.
	srv.RegisterOnShutdown(hub.Close)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", backend).
			Msg("starting teamroom server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Replies already accepted still get generated, stored and delivered.
	if err := orch.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("reply fan-out did not drain before timeout")
	}

	stopRelay()
	<-relayDone

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func openStore(ctx context.Context, cfg *config.Config, backend string, logger zerolog.Logger) (store.DataStore, error) {
	switch backend {
	case config.BackendPostgres:
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations completed")

		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to PostgreSQL")
		return pg, nil
	case config.BackendSQLite:
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite store")
		return sq, nil
	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
