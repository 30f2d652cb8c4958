package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// RetentionPolicy decides which cached resolutions are removed.
type RetentionPolicy struct {
	// MaxAge: rows resolved longer ago than this are deleted.
	MaxAge time.Duration
	// Interval: how often the background job runs.
	Interval time.Duration
	// DryRun: count eligible rows without deleting them.
	DryRun bool
}

// CountResolutions returns the total number of cached rows and how many are older than maxAge.
func CountResolutions(ctx context.Context, db *sql.DB, maxAge time.Duration) (total, expired int64, err error) {
	cutoff := time.Now().Add(-maxAge)
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE resolved_at < $1) FROM resolution_cache`, cutoff).Scan(&total, &expired)
	if err != nil {
		return 0, 0, fmt.Errorf("count resolutions: %w", err)
	}
	return total, expired, nil
}

// PruneResolutions deletes rows older than maxAge and returns how many were removed.
func PruneResolutions(ctx context.Context, db *sql.DB, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("prune resolutions: max age must be positive, got %s", maxAge)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM resolution_cache WHERE resolved_at < $1`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune resolutions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune resolutions: %w", err)
	}
	return n, nil
}

// RunRetention applies policy once.
func RunRetention(ctx context.Context, db *sql.DB, policy RetentionPolicy) (int64, error) {
	if policy.DryRun {
		_, expired, err := CountResolutions(ctx, db, policy.MaxAge)
		return expired, err
	}
	return PruneResolutions(ctx, db, policy.MaxAge)
}

// StartRetentionJob prunes expired resolutions immediately and then every policy.Interval
// until ctx is cancelled. It blocks; run it in a goroutine.
func StartRetentionJob(ctx context.Context, db *sql.DB, policy RetentionPolicy) {
	if policy.MaxAge <= 0 || policy.Interval <= 0 {
		slog.Info("resolution cache retention disabled", slog.String("component", "db_retention"))
		return
	}
	slog.Info("resolution cache retention starting",
		slog.Duration("max_age", policy.MaxAge),
		slog.Duration("interval", policy.Interval),
		slog.Bool("dry_run", policy.DryRun),
		slog.String("component", "db_retention"))

	run := func() {
		n, err := RunRetention(ctx, db, policy)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("resolution cache retention failed", slog.Any("err", err), slog.String("component", "db_retention"))
			}
			return
		}
		if n > 0 {
			slog.Info("resolution cache pruned", slog.Int64("rows", n), slog.Bool("dry_run", policy.DryRun), slog.String("component", "db_retention"))
		}
	}

	run()
	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
