package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opsledger/backend/internal/config"
)

var (
	DB    *gorm.DB
	Redis *redis.Client
)

const sqlitePrefix = "sqlite://"

// gormConfig is shared by every driver.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// References are checked by the services; polymorphic links cannot carry FKs.
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// IsSQLite reports whether url selects the embedded driver.
func IsSQLite(url string) bool {
	return strings.HasPrefix(url, sqlitePrefix) || url == ":memory:"
}

// Open opens a gorm handle for url. "sqlite://path" and ":memory:" use
// the pure-Go SQLite driver; anything else is handed to Postgres.
func Open(url string) (*gorm.DB, error) {
	if IsSQLite(url) {
		path := strings.TrimPrefix(url, sqlitePrefix)
		if path == "" {
			path = ":memory:"
		}
		db, err := gorm.Open(sqlite.Open(path), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database instance: %w", err)
		}
		// One writer; also keeps an in-memory database on a single connection.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(url), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Connect opens the entity store with retries and, when REDIS_URL is set,
// the Redis cache. A Redis failure is logged and the in-process cache is
// used instead.
func Connect(cfg *config.Config) error {
	var err error
	maxRetries := 30
	if IsSQLite(cfg.DatabaseURL) {
		maxRetries = 1
	}
	for i := 0; i < maxRetries; i++ {
		DB, err = Open(cfg.DatabaseURL)
		if err == nil {
			break
		}
		glog.Warningf("Database connection attempt %d/%d failed: %v. Retrying in 2 seconds...", i+1, maxRetries, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	glog.Info("Database connected successfully")

	if cfg.RedisURL == "" {
		glog.Info("REDIS_URL not set - using in-process cache")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		glog.Warningf("Invalid REDIS_URL: %v - using in-process cache", err)
		return nil
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		glog.Warningf("Failed to connect to Redis: %v - using in-process cache", err)
		client.Close()
		return nil
	}

	Redis = client
	glog.Info("Redis connected successfully")
	return nil
}

func Close() {
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if Redis != nil {
		Redis.Close()
	}
}
