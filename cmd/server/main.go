package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/bootstrap"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/cache"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/database"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/google"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/messaging"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/xendit"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/interfaces/middleware"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/interfaces/rest"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/crypto"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "crm-server")
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	zapLogger.Info("Database connection established", zap.String("host", cfg.Database.Host))

	if err := bootstrap.InitializeSchema(ctx, conn.DB(), zapLogger); err != nil {
		return err
	}

	ext := services.Externals{
		Gateway:   xendit.NewClient(cfg.Xendit, zapLogger),
		Google:    google.NewClient(cfg.Google, zapLogger),
		Publisher: messaging.NopPublisher{},
		Tokens:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}

	if cfg.Encryption.Key != "" {
		sealer, err := crypto.NewSealer(cfg.Encryption.Key)
		if err != nil {
			return err
		}
		ext.Sealer = sealer
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		ext.States = cache.NewStateStore(redisClient, 10*time.Minute)
		ext.Idempotency = cache.NewIdempotencyStore(redisClient, 24*time.Hour)
	}

	if cfg.RabbitMQ.URL != "" {
		rmq := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, zapLogger)
		if err := rmq.Dial(); err != nil {
			zapLogger.Warn("RabbitMQ unavailable, publishing will retry on the next outbox pass", zap.Error(err))
		}
		defer rmq.Close()
		ext.Publisher = rmq
	}

	svcMgr := services.NewServiceManager(conn, ext, zapLogger)
	svcMgr.StartOutboxWorker(cfg.Scheduler.OutboxPollInterval)
	defer svcMgr.StopOutboxWorker()

	scheduler := services.NewSchedulerService(cfg.Scheduler, zapLogger)
	if err := scheduler.RegisterDefaults(cfg.Scheduler, svcMgr); err != nil {
		return err
	}
	scheduler.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.StartCleanup(ctx, time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           rest.NewRouter(cfg, svcMgr, limiter, zapLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	zapLogger.Info("Server stopped")
	return nil
}
