package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rishtahq/rishta-engine/internal/app"
	"github.com/rishtahq/rishta-engine/internal/cache"
	"github.com/rishtahq/rishta-engine/internal/clock"
	"github.com/rishtahq/rishta-engine/internal/config"
	"github.com/rishtahq/rishta-engine/internal/db"
	"github.com/rishtahq/rishta-engine/internal/logger"
	"github.com/rishtahq/rishta-engine/internal/notify"
	"github.com/rishtahq/rishta-engine/internal/server"
	"github.com/rishtahq/rishta-engine/internal/service/connections"
	"github.com/rishtahq/rishta-engine/internal/service/quota"
	"github.com/rishtahq/rishta-engine/internal/tier"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Service clock in the configured time zone; it keys the daily ledger
	clk, err := clock.New(cfg.App.TimeZone)
	if err != nil {
		log.Error("failed to init clock", "err", err)
		return
	}

	limits := tier.DefaultTable()
	limits.ApplyOverrides(cfg.Quota.LimitOverrides)

	dispatcher := notify.NewLogDispatcher(log)

	appCtx := app.New(cfg, database, redisCache, log, clk, limits, dispatcher)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	registrars := []server.Registrar{
		quota.NewRegistrar(appCtx),
		connections.NewRegistrar(appCtx),
	}

	router := server.NewRouter(cfg, registrars...)
	srv, shutdown := server.StartHTTPServer(cfg, router)

	go func() {
		log.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
}
