package resolver

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// PostgresCache keeps resolutions in the resolution_cache table so they survive restarts.
// Expiry is checked on read with the same TTL as MemoryCache.
type PostgresCache struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresCache wraps a migrated database; ttl <= 0 uses DefaultTTL.
func NewPostgresCache(db *sql.DB, ttl time.Duration) *PostgresCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresCache{db: db, ttl: ttl}
}

// Get implements Cache.
func (c *PostgresCache) Get(ctx context.Context, query string) (int64, bool) {
	var id int64
	var at time.Time
	err := c.db.QueryRowContext(ctx, `SELECT type_id, resolved_at FROM resolution_cache WHERE query=$1`, query).Scan(&id, &at)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("resolution cache read failed", slog.Any("err", err), slog.String("component", "resolver"))
		}
		return 0, false
	}
	if time.Since(at) >= c.ttl {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM resolution_cache WHERE query=$1 AND resolved_at=$2`, query, at); err != nil {
			slog.Warn("resolution cache expire failed", slog.Any("err", err), slog.String("component", "resolver"))
		}
		return 0, false
	}
	return id, true
}

// Put implements Cache.
func (c *PostgresCache) Put(ctx context.Context, query string, id int64) {
	_, err := c.db.ExecContext(ctx, `INSERT INTO resolution_cache (query, type_id, resolved_at) VALUES ($1,$2,NOW())
		ON CONFLICT (query) DO UPDATE SET type_id=EXCLUDED.type_id, resolved_at=EXCLUDED.resolved_at`, query, id)
	if err != nil {
		slog.Warn("resolution cache write failed", slog.Any("err", err), slog.String("component", "resolver"))
	}
}
