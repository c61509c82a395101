package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/amireyal5/calendar/internal/auth"
	"github.com/amireyal5/calendar/internal/config"
	"github.com/amireyal5/calendar/internal/handler"
	"github.com/amireyal5/calendar/internal/jobs"
	"github.com/amireyal5/calendar/internal/log"
	"github.com/amireyal5/calendar/internal/server"
	"github.com/amireyal5/calendar/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	// with required settings absent the process still starts, serving
	// 503 on everything, so a half-provisioned deploy is visible
	// instead of crash-looping
	if missing := cfg.Missing(); len(missing) > 0 {
		logger.Error().Strs("missing", missing).Msg("required configuration absent, serving unconfigured shell")
		runInertShell(cfg, logger)
		return
	}

	ctx := context.Background()

	pool, err := newPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	applyMigration(ctx, pool, cfg.Postgres.MigrationFile, logger)

	// redis is optional: without it, change fan-out and reset tokens
	// stay in-process
	var rdb *redis.Client
	var resets auth.ResetStore = auth.NewMemoryResetStore()
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, running single-instance")
			rdb = nil
		} else {
			defer rdb.Close()
			resets = auth.NewRedisResetStore(rdb)
		}
	}

	hub := store.NewHub(rdb, logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	st := store.New(pool, hub)
	gateway := auth.NewGateway(st, st, resets, auth.Config{
		Secret:        cfg.Security.JWTSecret,
		AccessTTL:     cfg.Security.AccessTTL,
		RefreshTTL:    cfg.Security.RefreshTTL,
		ResetTokenTTL: cfg.Security.ResetTokenTTL,
	}, logger)

	h := handler.New(gateway, st, logger, time.Local)
	httpServer := server.NewHTTPServer(cfg, logger, h)

	janitor := jobs.NewJanitor(st, logger)
	if err := janitor.Start(); err != nil {
		logger.Error().Err(err).Msg("janitor start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, janitor, stopHub)
}

func newPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	pc.MaxConns = int32(cfg.MaxOpen)
	pc.MinConns = int32(cfg.MaxIdle)
	pc.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, path string, logger zerolog.Logger) {
	migration, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("migration file not found, skipping")
		return
	}
	if _, err := pool.Exec(ctx, string(migration)); err != nil {
		logger.Warn().Err(err).Msg("migration warning")
		return
	}
	logger.Info().Str("file", path).Msg("migration applied")
}

// runInertShell answers every request with 503 until the deployment is
// configured. One error is logged at boot; requests are not re-logged
// as errors.
func runInertShell(cfg *config.Config, logger zerolog.Logger) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unconfigured"})
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	_ = srv.Close()
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, janitor *jobs.Janitor, stopHub func()) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	janitor.Stop()
	stopHub()

	logger.Info().Msg("server exited cleanly")
}
