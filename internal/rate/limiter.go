package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces throttle counters.
const DefaultPrefix = "gotoken"

// Config holds refresh throttle tuning parameters.
type Config struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// Limiter caps how often one subject may refresh within a window.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client. A nil client
// disables throttling.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if redisClient == nil {
		cfg.Enabled = false
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled reports whether Allow can ever reject.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled && l.config.MaxAttempts > 0
}

// Allow records one refresh attempt for subject and reports
// ErrRateLimited once the budget for the current window is spent.
func (l *Limiter) Allow(ctx context.Context, subject string) error {
	if !l.Enabled() {
		return nil
	}

	hits, err := l.hit(ctx, l.key(subject))
	if err != nil {
		return err
	}
	if hits > int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Attempts returns the attempt count in the current window.
func (l *Limiter) Attempts(ctx context.Context, subject string) (int, error) {
	if l == nil || l.redis == nil {
		return 0, nil
	}
	n, err := l.redis.Get(ctx, l.key(subject)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, unavailable(err)
	}
	return max(n, 0), nil
}

// Reset clears the counter for subject.
func (l *Limiter) Reset(ctx context.Context, subject string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	return unavailable(l.redis.Del(ctx, l.key(subject)).Err())
}

func (l *Limiter) key(subject string) string {
	return l.config.Prefix + ":rf:" + subject
}

// hit bumps the window counter. EXPIRE NX only arms the TTL on the first
// hit, so the window is fixed from that moment.
func (l *Limiter) hit(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return incr.Val(), nil
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
