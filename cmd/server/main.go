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

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KIRA-Technologies/swagchain/config"
	"github.com/KIRA-Technologies/swagchain/internal/api"
	"github.com/KIRA-Technologies/swagchain/internal/api/handler"
	"github.com/KIRA-Technologies/swagchain/internal/cache"
	"github.com/KIRA-Technologies/swagchain/internal/gateway"
	"github.com/KIRA-Technologies/swagchain/internal/messaging"
	"github.com/KIRA-Technologies/swagchain/internal/repository"
	"github.com/KIRA-Technologies/swagchain/internal/service"
	"github.com/KIRA-Technologies/swagchain/internal/tracing"
	"github.com/KIRA-Technologies/swagchain/internal/webhook"
	"github.com/KIRA-Technologies/swagchain/pkg/database"
	"github.com/KIRA-Technologies/swagchain/pkg/logger"
)

// @title swagchain API
// @version 1.0
// @description Storefront checkout and Kira-Pay payment reconciliation.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	store := repository.NewStore(db)

	var throttle service.Throttle
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		throttle = cache.NewThrottle(rdb, "swagchain:", cfg.Redis.VerifyThrottle)
	} else {
		logger.Info("redis not configured, payment verification is not throttled")
	}

	if cfg.RabbitMQ.URL != "" {
		mq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer mq.Close()

		stopRelay := service.NewOutboxRelay(store, mq, cfg.Outbox).Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := stopRelay(sctx); err != nil {
				logger.Warn("outbox relay shutdown", zap.Error(err))
			}
		}()
	} else {
		logger.Info("rabbitmq not configured, order events stay in the outbox")
	}

	client := gateway.NewClient(cfg.Gateway)
	orders := service.NewOrderService(store)
	h := handler.New(handler.Services{
		Cart:         service.NewCartService(store),
		Checkout:     service.NewCheckoutService(store, client, cfg.App.PublicURL),
		Orders:       orders,
		Payments:     service.NewPaymentService(orders, client, throttle),
		Webhooks:     service.NewWebhookService(store, orders),
		WebhookAdmin: service.NewWebhookAdminService(client, cfg.Webhook, cfg.App),
	}, webhook.NewVerifier(cfg.Webhook.Secret,
		webhook.WithTolerance(cfg.Webhook.Tolerance),
		webhook.WithLegacySignatures(cfg.Webhook.AllowLegacySignatures),
	), cfg.Webhook.MaxBodyBytes)

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
