// Package ratelimit enforces the per-client daily request budget. The
// database counter is canonical; an explicit in-process fallback strategy,
// chosen at construction, takes over only while the database is unreachable.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DailyLimiter counts requests per client per UTC day in postgres.
type DailyLimiter struct {
	db       *sql.DB
	limit    int
	fallback *ProcessFallback
	logger   *slog.Logger
}

func NewDailyLimiter(db *sql.DB, limit int, fallback *ProcessFallback, logger *slog.Logger) *DailyLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyLimiter{
		db:       db,
		limit:    limit,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *DailyLimiter) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS request_counters (
	day DATE NOT NULL,
	client_key TEXT NOT NULL,
	count BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (day, client_key)
);
`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure request counter schema: %w", err)
	}
	return nil
}

// Allow increments today's counter for the client and reports whether it is
// still within the budget. On a database failure the configured in-process
// fallback decides instead; the request is never failed by the limiter itself.
func (l *DailyLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	var count int64
	err := l.db.QueryRowContext(ctx, `
INSERT INTO request_counters (day, client_key, count)
VALUES ($1, $2, 1)
ON CONFLICT (day, client_key) DO UPDATE SET count = request_counters.count + 1
RETURNING count
`, day, clientKey).Scan(&count)
	if err != nil {
		if l.fallback == nil {
			return false, fmt.Errorf("request counter update: %w", err)
		}
		l.logger.Warn("rate_limit_store_unavailable", "error", err)
		return l.fallback.Allow(clientKey), nil
	}
	return count <= int64(l.limit), nil
}

// ProcessFallback is the isolated in-process strategy used while the counter
// store is down: a token bucket per client, deliberately coarser than the
// daily budget.
type ProcessFallback struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewProcessFallback(rps float64, burst int) *ProcessFallback {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &ProcessFallback{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *ProcessFallback) Allow(clientKey string) bool {
	f.mu.Lock()
	limiter, ok := f.limiters[clientKey]
	if !ok {
		limiter = rate.NewLimiter(f.rps, f.burst)
		f.limiters[clientKey] = limiter
	}
	f.mu.Unlock()
	return limiter.Allow()
}
