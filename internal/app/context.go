package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/rishtahq/rishta-engine/internal/cache"
	"github.com/rishtahq/rishta-engine/internal/clock"
	"github.com/rishtahq/rishta-engine/internal/config"
	"github.com/rishtahq/rishta-engine/internal/notify"
	"github.com/rishtahq/rishta-engine/internal/tier"
)

// AppContext holds shared dependencies (DB, Redis, Logger, clock,
// limit table, notification dispatcher).
type AppContext struct {
	Cfg        *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Clock      clock.Clock
	Limits     *tier.Table
	Dispatcher notify.Dispatcher
}

// New creates a new AppContext
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *cache.RedisCache,
	logger *slog.Logger,
	clk clock.Clock,
	limits *tier.Table,
	dispatcher notify.Dispatcher,
) *AppContext {
	return &AppContext{
		Cfg:        cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Clock:      clk,
		Limits:     limits,
		Dispatcher: dispatcher,
	}
}
