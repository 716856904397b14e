package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rapport/pkg/aiclient"
	"rapport/pkg/auth"
	"rapport/pkg/broker"
	"rapport/pkg/cache"
	"rapport/pkg/config"
	"rapport/pkg/database"
	"rapport/pkg/handlers"
	"rapport/pkg/hub"
	"rapport/pkg/logging"
	"rapport/pkg/models"
	"rapport/pkg/ratelimit"
	"rapport/pkg/repository"
	"rapport/pkg/server"
	"rapport/pkg/services"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPurgeInterval = 30 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	log := logging.New(os.Stdout, cfg.LogLevel, cfg.Production)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info(ctx, "database ready")

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	store := cache.New(rdb)
	defer store.Close()
	log.Info(ctx, "redis connected")

	gate, closeGate := newGate(cfg, rdb)
	defer closeGate()

	repo := repository.NewAuthRepository(db)
	issuer := auth.NewIssuer(auth.IssuerConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, repo)

	bus := broker.New(rdb, broker.DefaultChannel, log)
	defer bus.Close()

	wsHub := hub.New(log)
	bus.On(func(n models.Notification) { wsHub.Deliver(n) })
	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	authSvc := services.NewAuthService(repo, issuer, store, services.NewNotificationService(bus), log, services.AuthConfig{
		MaxAttempts:  cfg.LoginMaxAttempts,
		LockDuration: cfg.LoginLockDuration,
	})
	insightSvc := services.NewInsightService(
		aiclient.New(cfg.AIServiceURL, cfg.AIServiceKey, cfg.AITimeout),
		store, cfg.InsightCacheTTL, log,
	)

	go purgeSessions(ctx, authSvc, sessionPurgeInterval, log)

	app := server.NewApp("rapport", cfg.Origins(), log)
	server.Register(app, server.Deps{
		Auth:     authSvc,
		Insights: insightSvc,
		Hub:      wsHub,
		Tokens:   issuer,
		Gate:     gate,
		Quotas:   cfg.Quotas(),
		Cookie:   handlers.CookieConfig{Secure: cfg.Production, TTL: cfg.RefreshTokenTTL},
		Log:      log,
	})

	errc := make(chan error, 1)
	go func() {
		addr := "0.0.0.0:" + cfg.Port
		log.Info(ctx, "server starting", "addr", addr, "rate_limit", cfg.RateLimitBackend)
		errc <- app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newGate(cfg *config.Config, rdb *redis.Client) (ratelimit.Gate, func()) {
	if cfg.RateLimitBackend == "redis" {
		return ratelimit.NewRedisGate(rdb, ""), func() {}
	}
	g := ratelimit.NewMemoryGate(ratelimit.WithJanitor(time.Minute))
	return g, g.Close
}

type sessionPurger interface {
	PurgeSessions(ctx context.Context) (int64, error)
}

func purgeSessions(ctx context.Context, svc sessionPurger, every time.Duration, log logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeSessions(ctx)
			if err != nil {
				log.Warn(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info(ctx, "sessions purged", "count", n)
			}
		}
	}
}
