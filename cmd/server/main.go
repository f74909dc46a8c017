// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/events"
	"github.com/levisbarua/pesaflow/internal/handler"
	"github.com/levisbarua/pesaflow/internal/provider/mpesa"
	"github.com/levisbarua/pesaflow/internal/repository"
	"github.com/levisbarua/pesaflow/internal/router"
	"github.com/levisbarua/pesaflow/internal/usecase"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger() (*zap.Logger, error) {
	if os.Getenv("ENVIRONMENT") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Initialize logger
	logger, err := newLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting pesaflow wallet service")

	// Load configuration
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("mpesa_base_url", cfg.Mpesa.BaseURL),
		zap.String("callback_url", cfg.Server.CallbackURL()),
		zap.String("store_driver", cfg.Store.Driver))

	ctx := context.Background()

	// Initialize store
	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	// Settlement events
	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka, logger), logger)
		logger.Info("kafka publisher initialized",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	} else {
		publisher = events.NewNoopPublisher(logger)
		logger.Warn("no kafka brokers configured, settlement events disabled")
	}
	defer publisher.Close()

	// Initialize provider
	mpesaClient := mpesa.NewClient(cfg.Mpesa, logger)

	// Initialize usecases
	paymentUC, err := usecase.NewPaymentUsecase(mpesaClient, store, publisher, cfg.Server, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to initialize payment usecase", zap.Error(err))
	}
	callbackUC := usecase.NewCallbackUsecase(store, publisher, cfg.Store, logger)
	walletUC := usecase.NewWalletUsecase(store, logger)

	// Setup routes
	r := router.SetupRoutes(router.Handlers{
		Payment:  handler.NewPaymentHandler(paymentUC, logger),
		Callback: handler.NewCallbackHandler(callbackUC, logger),
		Wallet:   handler.NewWalletHandler(walletUC, logger),
		Health:   handler.NewHealthHandler(walletUC, cfg.Server.PublicBaseURL, paymentUC.CallbackURL(), logger),
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Mpesa.Timeout + cfg.Store.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.TransactionStore, func()) {
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		return repository.NewRedisStore(client, logger), func() { _ = client.Close() }

	default:
		dbPool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := dbPool.Ping(ctx); err != nil {
			logger.Fatal("database unreachable", zap.Error(err))
		}
		if err := repository.Migrate(ctx, dbPool); err != nil {
			logger.Fatal("failed to apply schema", zap.Error(err))
		}
		logger.Info("connected to database")
		return repository.NewPostgresStore(dbPool, logger), dbPool.Close
	}
}
