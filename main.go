package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"uerp-backend/application/coordinator"
	"uerp-backend/application/policy"
	"uerp-backend/application/registry"
	"uerp-backend/application/tasks"
	"uerp-backend/domain/schema"
	authdriver "uerp-backend/infrastructure/auth"
	"uerp-backend/infrastructure/config"
	"uerp-backend/infrastructure/drivers"
	"uerp-backend/infrastructure/identity"
	"uerp-backend/infrastructure/postgres"
	"uerp-backend/infrastructure/rediscache"
	"uerp-backend/infrastructure/search"
	"uerp-backend/interfaces/http/rest"
	"uerp-backend/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	logger := buildLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database := postgres.New(logger, postgres.Config{
		WriterHostname: cfg.Postgres.WriterHostname,
		WriterHostport: cfg.Postgres.WriterHostport,
		ReaderHostname: cfg.Postgres.ReaderHostname,
		ReaderHostport: cfg.Postgres.ReaderHostport,
		Username:       cfg.Postgres.Username,
		Password:       cfg.Postgres.Password,
		Database:       cfg.Postgres.Database,
		SSLMode:        cfg.Postgres.SSLMode,
	})
	searcher := search.New(logger, search.Config{
		Addresses: cfg.Search.Addresses,
		Username:  cfg.Search.Username,
		Password:  cfg.Search.Password,
		Shards:    cfg.Search.Shards,
		Replicas:  cfg.Search.Replicas,
		Expire:    cfg.Search.Expire,
	})
	cache := rediscache.New(logger, rediscache.Config{
		Hostname: cfg.Redis.Hostname,
		Hostport: cfg.Redis.Hostport,
		Database: cfg.Redis.Database,
		Password: cfg.Redis.Password,
		Expire:   cfg.Redis.Expire,
	})
	kv := rediscache.NewKeyValue(logger, rediscache.Config{
		Hostname: cfg.Redis.Hostname,
		Hostport: cfg.Redis.Hostport,
		Database: cfg.Redis.KVDatabase,
		Password: cfg.Redis.Password,
		Expire:   cfg.Redis.KVExpire,
	})

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for name, connect := range map[string]func(context.Context) error{
		"database": database.Connect,
		"search":   searcher.Connect,
		"cache":    cache.Connect,
		"kv":       kv.Connect,
	} {
		if err := connect(connectCtx); err != nil {
			logger.Fatal("driver connect failed", zap.String("driver", name), zap.Error(err))
		}
	}

	var auth drivers.AuthDriver
	if cfg.AuthEnabled() {
		provider := identity.New(logger, identity.Config{
			BaseURL:       cfg.Identity.BaseURL,
			DefaultRealm:  cfg.Identity.DefaultRealm,
			RBACAttribute: cfg.Identity.RBACAttribute,
			AdminUsername: cfg.Identity.AdminUsername,
			AdminPassword: cfg.Identity.AdminPassword,
			Timeout:       cfg.Identity.Timeout,
		})
		auth = authdriver.New(logger, provider, kv, cfg.Identity.DefaultRealm, cfg.Redis.KVExpire)
		if err := auth.Connect(connectCtx); err != nil {
			logger.Fatal("identity provider connect failed", zap.Error(err))
		}
	}

	pool := tasks.NewPool(logger, cfg.PoolWorkers, cfg.PoolCapacity, cfg.PoolTimeout)

	var metrics *observability.Collector
	if cfg.EnableMetrics {
		metrics = observability.NewCollector(cfg.Service)
	}
	coord := coordinator.New(logger, pool, cache, searcher, database)
	if metrics != nil {
		coord.WithMetrics(metrics)
	}
	reg := registry.New(logger, cfg.Service, cfg.Version, cache, searcher, database)

	policyInfo, err := reg.Register(ctx, &schema.Policy{}, cfg.Service+".auth",
		schema.Config{Layer: schema.LayerCSD, AAA: schema.AA})
	if err != nil {
		logger.Fatal("policy schema registration failed", zap.Error(err))
	}

	var refresher *policy.Refresher
	if auth != nil {
		refresher = policy.New(logger, coord, auth, policyInfo,
			cfg.RefreshRBACInterval, cfg.RefreshInfoInterval)
	}

	server := rest.NewServer(logger, reg, coord, auth, pool, metrics, cfg.Title)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if refresher != nil {
		refresher.Start()
	}
	go func() {
		logger.Info("serving", zap.String("address", cfg.HTTPAddress), zap.String("service", cfg.Service))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if refresher != nil {
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Warn("refresher stop incomplete", zap.Error(err))
		}
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn("task pool drain incomplete", zap.Error(err))
	}
	if auth != nil {
		auth.Disconnect(shutdownCtx)
	}
	for _, disconnect := range []func(context.Context) error{
		kv.Disconnect, cache.Disconnect, searcher.Disconnect, database.Disconnect,
	} {
		if err := disconnect(shutdownCtx); err != nil {
			logger.Warn("driver disconnect failed", zap.Error(err))
		}
	}
}

func buildLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger
}
