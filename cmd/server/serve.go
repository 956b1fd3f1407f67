package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"venuebook/backend/internal/config"
	"venuebook/backend/internal/events"
	"venuebook/backend/internal/httpapi"
	"venuebook/backend/internal/observability"
	"venuebook/backend/internal/service"
	"venuebook/backend/internal/store"
	"venuebook/backend/internal/store/memory"
	pgstore "venuebook/backend/internal/store/postgres"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := cfg.ValidateSecurityConfig(); err != nil {
				return fmt.Errorf("invalid security configuration: %w", err)
			}
			logger, err := observability.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer syncLogger(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warn("close error", zap.Error(err))
			}
		}
	}()

	repo, closeRepo, err := openRepository(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	publisher, closePublisher := newPublisher(startCtx, cfg, logger)
	if closePublisher != nil {
		closers = append(closers, closePublisher)
	}

	svc := service.New(repo, service.WithPublisher(publisher), service.WithLogger(logger))
	auth := httpapi.NewAuthManager(cfg.JWTSecret, cfg.AdminTokenTTL)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:     cfg.AllowedOrigin,
		Logger:            logger,
		BookingsPerMinute: cfg.BookingsPerMin,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("venuebook listening", zap.String("addr", cfg.Address()), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

// openRepository uses postgres when DATABASE_URL is set and never falls back
// to memory in that case.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("repository: in-memory demo catalog")
		return memory.NewSeeded(), nil, nil
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
	}
	logger.Info("repository: postgres")
	return pg, pg.Close, nil
}

// newPublisher prefers kafka, then redis. An unreachable redis degrades to
// the noop publisher; bookings never depend on event delivery.
func newPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, func() error) {
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("events: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return p, p.Close
	}
	if cfg.RedisAddr != "" {
		p := events.NewRedisPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.EventsChannel)
		if err := p.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, events disabled", zap.Error(err))
			_ = p.Close()
			return events.NoopPublisher{}, nil
		}
		logger.Info("events: redis", zap.String("channel", cfg.EventsChannel))
		return p, p.Close
	}
	logger.Info("events: noop")
	return events.NoopPublisher{}, nil
}
