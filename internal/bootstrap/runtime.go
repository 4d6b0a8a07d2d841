// Package bootstrap wires the process-wide dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"snapshare/internal/cache"
	"snapshare/internal/config"
	"snapshare/internal/database"
	"snapshare/internal/middleware"
	"snapshare/internal/seed"
	"snapshare/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo loads the built-in demo accounts in development.
	SeedDemo bool
}

// Runtime is the set of connected backends a server runs on.
type Runtime struct {
	DB      *gorm.DB
	Redis   *redis.Client // nil when Redis is unreachable
	Storage storage.Storage
}

// InitRuntime connects the database, Redis and object storage and optionally
// seeds demo data.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// A nil client means the app runs without cache, fan-out or rate limits.
	rdb := cache.InitRedis(cfg.RedisURL)

	store, err := storage.New(ctx, cfg)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	if opts.SeedDemo && isDevelopment(cfg) {
		if _, err := seed.NewSeeder(db).Run(ctx, seed.Options{}); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	return &Runtime{DB: db, Redis: rdb, Storage: store}, nil
}

func isDevelopment(cfg *config.Config) bool {
	return cfg.Env == "" || strings.EqualFold(cfg.Env, "development")
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Warn("failed to close database", slog.String("error", cerr.Error()))
		}
	}
}
