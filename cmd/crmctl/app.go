package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/config"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/cache"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/database"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/google"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/messaging"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/infrastructure/xendit"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/crypto"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/logger"
)

var envFile string

// app holds the resources a command needs. close releases them in reverse order.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	conn   *database.Connection
	svcMgr *services.ServiceManager
	closers []func() error
}

func (r *app) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	zapLogger, err := logger.NewLogger(cfg.Logging.Level, "console", "crmctl")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	return cfg, zapLogger, nil
}

func openDatabase(ctx context.Context) (*app, error) {
	cfg, zapLogger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	conn, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg, logger: zapLogger, conn: conn}
	rt.closers = append(rt.closers, conn.Close)
	return rt, nil
}

// openServices connects to every configured backend and builds the service layer.
func openServices(ctx context.Context) (*app, error) {
	rt, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}

	ext := services.Externals{
		Gateway:   xendit.NewClient(rt.cfg.Xendit, rt.logger),
		Google:    google.NewClient(rt.cfg.Google, rt.logger),
		Publisher: messaging.NopPublisher{},
		Tokens:    auth.NewTokenManager(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.TokenTTL),
	}
	if rt.cfg.Encryption.Key != "" {
		if ext.Sealer, err = crypto.NewSealer(rt.cfg.Encryption.Key); err != nil {
			rt.close()
			return nil, err
		}
	}
	if rt.cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, rt.cfg.Redis)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
		ext.States = cache.NewStateStore(client, 10*time.Minute)
		ext.Idempotency = cache.NewIdempotencyStore(client, 24*time.Hour)
	}

	rt.svcMgr = services.NewServiceManager(rt.conn, ext, rt.logger)
	return rt, nil
}
