package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/config"
	storefronthttp "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("storefront starting", zap.String("env", cfg.Env), zap.String("port", cfg.HTTPPort))

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	orderRepo, err := repository.NewPostgresRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer orderRepo.Close()

	if err := orderRepo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	mongoDB, err := repository.ConnectMongoDB(startCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			log.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}()

	favoriteRepo := repository.NewMongoFavoriteRepository(mongoDB)
	if err := favoriteRepo.CreateIndexes(startCtx); err != nil {
		return fmt.Errorf("create favorite indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	kafkaWriter := publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
	defer func() {
		if err := kafkaWriter.Close(); err != nil {
			log.Warn("kafka writer close failed", zap.Error(err))
		}
	}()

	cartService := service.NewCartService(cache.NewRedisCartStore(redisClient, cfg.CartTTL, log), log)
	orderService := service.NewOrderService(orderRepo, log)
	favoriteService := service.NewFavoriteService(favoriteRepo, log)

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	var pollerDone sync.WaitGroup
	pollerDone.Add(1)
	go func() {
		defer pollerDone.Done()
		publisher.NewOutboxPoller(orderRepo, kafkaWriter, log).Run(pollerCtx)
	}()

	handler := storefronthttp.NewRouter(storefronthttp.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		CartTTL:        cfg.CartTTL,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}, cartService, orderService, favoriteService, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		stopPoller()
		pollerDone.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}

	stopPoller()
	done := make(chan struct{})
	go func() {
		pollerDone.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("outbox poller did not stop before shutdown deadline")
	}

	log.Info("storefront stopped")
	return nil
}
