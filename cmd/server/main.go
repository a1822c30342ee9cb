package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"push-notification-service/internal/api"
	"push-notification-service/internal/cache"
	"push-notification-service/internal/config"
	"push-notification-service/internal/event"
	"push-notification-service/internal/httpserver"
	"push-notification-service/internal/repository"
	"push-notification-service/internal/service"
	"push-notification-service/migrations"
	"push-notification-service/pkg/circuitbreaker"
	pkgconfig "push-notification-service/pkg/config"
	"push-notification-service/pkg/db"
	"push-notification-service/pkg/logger"
	"push-notification-service/pkg/mq"
	"push-notification-service/pkg/otel"
	pkgredis "push-notification-service/pkg/redis"
)

func main() {
	log := logger.NewLogger(pkgconfig.GetConfigEnv())
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("push-notification-service failed", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log.Info("Starting push-notification-service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.Bool("cache_enabled", cfg.Redis.Addr != ""),
		zap.Bool("events_enabled", cfg.MQ.URL != ""),
		zap.Bool("admin_auth", cfg.JWT.Secret != ""),
	)

	ctx := context.Background()

	// Tracing
	shutdownTracing, err := otel.Init(ctx, cfg.Otel, log)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	// DB
	log.Info("Initializing database connection...")
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS, migrations.Dir, log); err != nil {
		return err
	}

	checks := []httpserver.ReadinessCheck{{Name: "db", Check: pool.Ping}}

	// Redis（可选）
	var listCache service.ListCache
	rdb, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		ttl := time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second
		listCache = cache.NewNotificationCache(rdb, ttl)
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info("Notification list cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", ttl))
	}

	// MQ Publisher（可选）
	var publisher service.EventPublisher
	if cfg.MQ.URL != "" {
		mqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer mqPublisher.Close()

		breaker := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.Event.BreakerFailureThreshold,
			OpenTimeout:      cfg.Event.BreakerOpenTimeout(),
		}, circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			log.Warn("Event publisher circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}))
		publisher = event.NewNotificationPublisher(mqPublisher, breaker, cfg.Event.PublishTimeout(), log)
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "mq",
			Check: func(context.Context) error {
				if !mqPublisher.IsConnected() {
					return mq.ErrClosed
				}
				return nil
			},
		})
		log.Info("notification.created publisher enabled")
	}

	repo := repository.NewNotificationRepository(pool, log)
	svc := service.NewNotificationService(repo, listCache, publisher, log)
	handler := api.NewNotificationHandler(svc, log)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Handler:   handler,
		Logger:    log,
		JWTSecret: cfg.JWT.Secret,
		Checks:    checks,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Shutting down push-notification-service gracefully...", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("push-notification-service shutdown complete")
	return nil
}
