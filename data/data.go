// Package data owns the persistence handles: the relational database
// backing principals, sessions, codes, and the audit log, plus an optional
// redis client for hot-path caches.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nebulium/authcore/config"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/redis/go-redis/v9"
)

// Data aggregates the persistence collaborators.
type Data struct {
	db    *sql.DB
	redis *redis.Client

	// queryTimeout bounds every persistence call; see WithTimeout.
	queryTimeout time.Duration
}

// New connects the database and, when configured, redis.
func New(cfg *config.Data, log *logger.Logger) (*Data, error) {
	if cfg == nil || cfg.Database == nil || cfg.Database.Source == "" {
		return nil, fmt.Errorf("data: database source is required")
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.Source)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	log.Info(ctx, "Database connected", "driver", cfg.Database.Driver)

	d := &Data{db: db, queryTimeout: cfg.QueryTimeout}
	if d.queryTimeout <= 0 {
		d.queryTimeout = 5 * time.Second
	}

	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		d.redis = rc
		log.Info(ctx, "Redis connected", "addr", cfg.Redis.Addr)
	}

	return d, nil
}

// DB returns the database handle.
func (d *Data) DB() *sql.DB {
	return d.db
}

// Redis returns the redis client; nil when caching is not configured.
func (d *Data) Redis() *redis.Client {
	return d.redis
}

// WithTimeout derives a bounded context for a persistence call. Callers
// must treat a deadline error as transient, never as an auth decision.
func (d *Data) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.queryTimeout)
}

// Health pings the collaborators.
func (d *Data) Health(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if d.redis != nil {
		if err := d.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the handles.
func (d *Data) Close() error {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	return d.db.Close()
}
