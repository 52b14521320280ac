package ratelimit

import (
	"context"
	"time"

	db "github.com/azizikri/referral-claim/db/gen"
	"github.com/jackc/pgx/v5/pgtype"
)

type counterStore interface {
	HitRateLimit(ctx context.Context, arg db.HitRateLimitParams) (int32, error)
}

// PostgresLimiter keeps one counter row per key in rate_limits. The row is
// reset whenever a hit lands in a newer window.
type PostgresLimiter struct {
	store  counterStore
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewPostgresLimiter(store counterStore, limit int, window time.Duration) *PostgresLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &PostgresLimiter{store: store, limit: limit, window: window, now: time.Now}
}

func (l *PostgresLimiter) Allow(ctx context.Context, key string) (bool, error) {
	hits, err := l.store.HitRateLimit(ctx, db.HitRateLimitParams{
		Key:         key,
		WindowStart: pgtype.Timestamptz{Time: windowStart(l.now(), l.window), Valid: true},
	})
	if err != nil {
		return false, err
	}
	return int(hits) <= l.limit, nil
}

func (l *PostgresLimiter) Window() time.Duration {
	return l.window
}
