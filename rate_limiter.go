package authxero

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RateLimiter bounds how often a caller may hit the provisioning endpoints.
// Allow reports whether the request fits the caller's current window.
type RateLimiter interface {
	Allow(ctx context.Context, callerID string) (bool, error)
}

type rateWindow struct {
	count         int
	windowResetAt time.Time
}

// MemoryRateLimiter is a fixed-window counter held in process memory. It is
// the single-instance default; horizontally scaled deployments should use
// RedisRateLimiter so all instances share one budget.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow

	window time.Duration
	limit  int
	now    func() time.Time
}

// NewMemoryRateLimiter creates a limiter with the configured window and capacity.
func NewMemoryRateLimiter(cfg Config) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: map[string]*rateWindow{},
		window:  cfg.GetRateLimitWindow(),
		limit:   cfg.GetRateLimitMax(),
		now:     time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (l *MemoryRateLimiter) WithClock(clock func() time.Time) *MemoryRateLimiter {
	if clock != nil {
		l.now = clock
	}
	return l
}

// Allow implements RateLimiter. The first request in a window creates the
// record; a request past the reset time starts a fresh window.
func (l *MemoryRateLimiter) Allow(ctx context.Context, callerID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	win, ok := l.windows[callerID]
	if !ok || now.After(win.windowResetAt) {
		l.windows[callerID] = &rateWindow{
			count:         1,
			windowResetAt: now.Add(l.window),
		}
		return true, nil
	}

	if win.count >= l.limit {
		return false, nil
	}

	win.count++
	return true, nil
}

// RedisRateLimiter shares one fixed-window budget across instances using
// INCR with an expiry set on the window's first hit.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	limit  int
}

// NewRedisRateLimiter creates a limiter backed by the given Redis client.
func NewRedisRateLimiter(client redis.UniversalClient, cfg Config) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: "axrl:",
		window: cfg.GetRateLimitWindow(),
		limit:  cfg.GetRateLimitMax(),
	}
}

// Allow implements RateLimiter.
func (l *RedisRateLimiter) Allow(ctx context.Context, callerID string) (bool, error) {
	key := l.prefix + callerID

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "rate limiter backend unavailable")
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "rate limiter backend unavailable")
		}
	}

	return count <= int64(l.limit), nil
}
