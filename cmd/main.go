package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astrona/backend/internal/api/handler"
	"astrona/backend/internal/chathub"
	"astrona/backend/internal/config"
	"astrona/backend/internal/id"
	"astrona/backend/internal/identity"
	"astrona/backend/internal/logger"
	"astrona/backend/internal/metrics"
	"astrona/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}

	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL empty, presence flags disabled")
		return db, nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}

	slog.Info("database and redis connections established")
	return db, rdb, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)
	slog.Info("starting chat server", "env", cfg.Env, "port", cfg.Port)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.Error("failed to init id generator", "node", cfg.NodeID, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb, err := setupDependencies(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect dependencies", "error", err)
		os.Exit(1)
	}
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	// Flags left behind by a previous process describe connections that no longer exist.
	if err := s.ResetPresence(ctx); err != nil && !errors.Is(err, storage.ErrPresenceDisabled) {
		slog.Warn("failed to reset presence flags", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gw := identity.NewGateway(s, cfg.JWT)
	hub := chathub.NewManagerService(s, gw, s, m)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger())

	h := handler.NewHandler(hub, s, gw, cfg.Hub)
	h.SetupRoutes(r, reg)

	// No WriteTimeout: it would apply to hijacked WebSocket connections.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
