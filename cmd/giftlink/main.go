package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/giftlink/internal/clock"
	"github.com/dukerupert/giftlink/internal/config"
	"github.com/dukerupert/giftlink/internal/database"
	"github.com/dukerupert/giftlink/internal/email"
	"github.com/dukerupert/giftlink/internal/logging"
	"github.com/dukerupert/giftlink/internal/notify"
	"github.com/dukerupert/giftlink/internal/ratelimit"
	"github.com/dukerupert/giftlink/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "giftlink: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if v, err := database.Version(db); err == nil {
		logger.Info("database ready", "path", cfg.DBPath, "schema_version", v)
	}

	clk := clock.Real{}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, "giftlink:ratelimit:")
		logger.Info("rate limits shared via redis", "addr", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewMemoryLimiter(clk)
	}

	var gateway notify.Gateway
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	if emailClient.Configured() {
		gateway = emailClient
	} else {
		logger.Warn("postmark not configured, notifications will be logged only")
		gateway = notify.NewLogGateway(logger)
	}

	if cfg.AdminPasswordHash == "" {
		logger.Warn("GIFTLINK_ADMIN_PASSWORD_HASH not set, admin routes are disabled")
	}

	srv := server.New(db, cfg, limiter, gateway, clk, logger)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("giftlink listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper := srv.Sweeper()
		sweeper.Start(ctx)
		<-ctx.Done()
		sweeper.Stop()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				srv.Cleanup(ctx)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Hub().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	srv.Dispatcher().Wait()
	return err
}
