package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	contractapp "github.com/erp/gateway/internal/application/contract"
	partnerapp "github.com/erp/gateway/internal/application/partner"
	syncapp "github.com/erp/gateway/internal/application/sync"
	"github.com/erp/gateway/internal/infrastructure/auth"
	"github.com/erp/gateway/internal/infrastructure/cache"
	"github.com/erp/gateway/internal/infrastructure/config"
	gatewayinfra "github.com/erp/gateway/internal/infrastructure/gateway"
	"github.com/erp/gateway/internal/infrastructure/logger"
	"github.com/erp/gateway/internal/infrastructure/persistence"
	"github.com/erp/gateway/internal/interfaces/http/handler"
	"github.com/erp/gateway/internal/interfaces/http/middleware"
	"github.com/erp/gateway/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ERP gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	store, err := cache.NewRedisStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Gateway.KeyPrefix)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing redis", zap.Error(err))
		}
	}()
	log.Info("Redis connected")

	// Repositories and gateway plumbing
	contractRepo := persistence.NewGormContractRepository(db.DB)
	syncStore := persistence.NewGormSyncStore(db.DB)

	tokenManager := gatewayinfra.NewTokenManager(store, contractRepo, gatewayinfra.TokenOptions{
		LoginURL:         cfg.Gateway.LoginURL,
		TokenTTL:         cfg.Gateway.TokenTTL,
		LockTTL:          cfg.Gateway.LockTTL,
		LockWaitBudget:   cfg.Gateway.LockWaitBudget,
		LockPollInterval: cfg.Gateway.LockPollInterval,
		LoginTimeout:     cfg.Gateway.LoginTimeout,
		MaxRetries:       cfg.Gateway.LoginMaxRetries,
		RetryDelay:       cfg.Gateway.LoginRetryDelay,
	}, log)

	client := gatewayinfra.NewClient(tokenManager, contractRepo, gatewayinfra.ClientOptions{
		QueryURL:    cfg.Gateway.QueryURL,
		SaveURL:     cfg.Gateway.SaveURL,
		CallTimeout: cfg.Gateway.CallTimeout,
		MaxRetries:  cfg.Gateway.RequestMaxRetries,
		RetryDelay:  cfg.Gateway.RequestRetryDelay,
	}, gatewayinfra.NewLogObserver(log), log)

	// Application services
	syncService := syncapp.NewService(contractRepo, gatewayinfra.NewPartnerSource(client), syncStore, syncapp.Options{
		BatchSize:          cfg.Sync.BatchSize,
		InterContractDelay: cfg.Sync.InterContractDelay,
	}, log)
	partnerService := partnerapp.NewService(client, contractRepo, store, partnerapp.Options{
		SearchCacheTTL: cfg.Sync.PartnerCacheTTL,
		LookupCacheTTL: cfg.Sync.LookupCacheTTL,
	}, log)
	contractService := contractapp.NewService(contractRepo, tokenManager, log)

	// HTTP server
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	if cfg.JWT.Secret != "" {
		jwtService := auth.NewJWTService(cfg.JWT)
		engine.Use(middleware.JWTAuth(jwtService,
			"/api/v1/health",
			"/api/v1/ready",
		))
	}
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	router.NewRouter(engine).
		Register(handler.NewHealthHandler(db, store.Ping)).
		Register(handler.NewContractHandler(contractService)).
		Register(handler.NewTokenHandler(tokenManager)).
		Register(handler.NewPartnerHandler(partnerService)).
		Register(handler.NewSyncHandler(syncService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	log.Info("HTTP server listening", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
