// Package main is the entry point for the Vistly API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vistly/vistly/internal/cache"
	"github.com/vistly/vistly/internal/config"
	"github.com/vistly/vistly/internal/cursor"
	"github.com/vistly/vistly/internal/database"
	"github.com/vistly/vistly/internal/handlers"
	"github.com/vistly/vistly/internal/ratelimit"
	"github.com/vistly/vistly/internal/remoteconfig"
	"github.com/vistly/vistly/internal/repository"
	"github.com/vistly/vistly/internal/security"
	"github.com/vistly/vistly/internal/server"
	"github.com/vistly/vistly/internal/services"
	"github.com/vistly/vistly/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel)
	log.Info("starting vistly api", "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Settings cache: Redis when configured, in-process otherwise.
	var settingsCache cache.Cache
	if cfg.RedisEnabled() {
		redisCache, err := cache.NewRedisCache(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
		settingsCache = redisCache
		log.Info("settings cache using redis", "host", cfg.Redis.Host)
	} else {
		settingsCache = cache.NewMemoryCache()
		log.Info("settings cache using in-process memory")
	}

	settings := remoteconfig.NewCachedSettings(
		remoteconfig.NewPostgresProvider(pool),
		settingsCache,
		cfg.Rate.SettingsCacheTTL,
	)
	guard := ratelimit.NewGuard(ratelimit.NewPostgresStore(pool), settings, log)

	feedCodec, err := cursor.New(cfg.Cursor.Secret, cursor.TimeUUID)
	if err != nil {
		return fmt.Errorf("build feed cursor codec: %w", err)
	}
	scoreCodec, err := cursor.New(cfg.Cursor.Secret, cursor.ScoreUUID)
	if err != nil {
		return fmt.Errorf("build leaderboard cursor codec: %w", err)
	}

	visitRepo := repository.NewPostgresVisitRepository(pool)
	socialRepo := repository.NewPostgresSocialRepository(pool)

	photos := security.NewPhotoValidator(security.DefaultPhotoConfig())
	visitSvc := services.NewVisitService(visitRepo, guard, photos, log)
	socialSvc := services.NewSocialService(socialRepo, guard, log)

	health := handlers.NewHealthHandler()
	health.AddCheck("database", pool.HealthCheck)
	if cfg.RedisEnabled() {
		health.AddCheck("redis", settingsCache.Ping)
	}

	srv := server.New(cfg, log, server.Handlers{
		Health:      health,
		Feed:        handlers.NewFeedHandler(visitSvc, feedCodec, log),
		Leaderboard: handlers.NewLeaderboardHandler(socialSvc, scoreCodec, log),
		Visit:       handlers.NewVisitHandler(visitSvc, log),
		Social:      handlers.NewSocialHandler(socialSvc, log),
		Signup:      handlers.NewSignupHandler(socialSvc, log),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return <-errCh
}
