package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mycheff/engine/config"
	httpDelivery "github.com/mycheff/engine/internal/delivery/http"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"github.com/mycheff/engine/internal/infrastructure/securestore"
	"github.com/mycheff/engine/internal/usecase"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting MyCheff engine bridge",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("store", cfg.Store.Type),
	)

	store, err := securestore.New(securestore.Config{
		Type:       cfg.Store.Type,
		Path:       cfg.Store.Path,
		Passphrase: cfg.Store.Passphrase,
		RedisURL:   cfg.Store.RedisURL,
		KeyPrefix:  cfg.Store.KeyPrefix,
		Session:    cfg.Store.Session,
	})
	if err != nil {
		logger.Fatal("failed to open secure store", zap.Error(err))
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := usecase.NewEngine(ctx, engineConfig(cfg), store, logger)
	if err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}
	defer engine.Close()

	handler := httpDelivery.NewHandler(httpDelivery.ServicesFromEngine(engine), logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newLogger builds a production logger, or a development one outside production
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.Server.Environment == "production" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func engineConfig(cfg *config.Config) usecase.EngineConfig {
	retry := cache.DefaultRetryPolicy()
	retry.Count = cfg.Cache.RetryCount
	retry.BaseDelay = cfg.Cache.RetryBaseDelay
	retry.MaxDelay = cfg.Cache.RetryMaxDelay

	return usecase.EngineConfig{
		Backend: backend.ClientConfig{
			BaseURL:   cfg.Backend.BaseURL,
			Timeout:   cfg.Backend.Timeout,
			RateLimit: cfg.Backend.RateLimit,
			Burst:     cfg.Backend.Burst,
		},
		Cache: cache.Config{
			StaleTime:  cfg.Cache.StaleTime,
			GCTime:     cfg.Cache.GCTime,
			GCInterval: cfg.Cache.GCInterval,
			Retry:      &retry,
		},
		Auth: usecase.TokenManagerConfig{
			DefaultLanguage: cfg.Auth.DefaultLanguage,
			RefreshSkew:     cfg.Auth.RefreshSkew,
		},
		PageSize:        cfg.Search.PageSize,
		MatchPoolSize:   cfg.Search.MatchPoolSize,
		Debounce:        cfg.Search.Debounce,
		MinQueryLength:  cfg.Search.MinQueryLength,
		MaxQueryLength:  cfg.Search.MaxQueryLength,
		IngredientLimit: cfg.Search.IngredientLimit,
	}
}
