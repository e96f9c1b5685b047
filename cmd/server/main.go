package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"proptools/internal/config"
	"proptools/internal/db"
	"proptools/internal/middleware"
	"proptools/internal/ratelimit"
	"proptools/internal/router"
	"proptools/internal/services"
	"proptools/internal/store"
	"proptools/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $PROPTOOLS_CONFIG or ./config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	utils.InitLogger(cfg.LogLevel)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.Seed {
		if err := db.Seed(ctx, st, cfg.Admin); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	cache, err := utils.NewCache(cfg.CacheSize, cfg.CacheDuration())
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	mailer, err := services.NewMailService(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("init mail: %w", err)
	}
	if !mailer.Enabled() {
		slog.Warn("smtp not configured, verification links will only be logged")
	}

	// 后台校对计数器
	reconciler := services.NewReconciler(st)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTDuration())
	deps := router.Deps{
		Config:  cfg,
		DB:      st,
		Auth:    services.NewAuthService(st, mailer, tokens, cfg.AppURL, cfg.VerificationDuration()),
		Tools:   services.NewToolService(st, cache, reconciler),
		Reviews: services.NewReviewService(st, reconciler),
		Groups:  services.NewGroupService(st, reconciler),
		Preview: services.NewSitePreviewService(nil),
	}

	if cfg.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer client.Close()
		if deps.AuthLimiter, err = newLimiter(client, "auth", cfg.AuthRateLimitPerMinute); err != nil {
			return err
		}
		if deps.VoteLimiter, err = newLimiter(client, "vote", cfg.VoteRateLimitPerMinute); err != nil {
			return err
		}
	} else {
		slog.Warn("redis not configured, rate limiting disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("PropTools server starting", "port", cfg.Port, "env", cfg.Env, "driver", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLimiter 返回 nil 接口表示该范围不限流
func newLimiter(client *redis.Client, scope string, perMinute int) (middleware.Limiter, error) {
	if perMinute <= 0 {
		return nil, nil
	}
	l, err := ratelimit.NewFixedWindowLimiter(client, scope, perMinute, time.Minute)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		slog.Warn("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), func() {}, nil
	}

	gdb, err := db.Open(cfg.DatabaseURL, db.OptionsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, nil, err
	}
	st := store.NewGormStore(gdb)
	return st, func() {
		if err := st.Close(); err != nil {
			slog.Warn("close database", "err", err)
		}
	}, nil
}
