// Package ratelimit throttles mutating API calls with a Redis fixed-window counter
// so that every replica behind a load balancer shares one quota.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ayursutra:ratelimit"

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Options configures a FixedWindowLimiter.
type Options struct {
	// Prefix namespaces the counter keys. Defaults to "ayursutra:ratelimit".
	Prefix string
	Limit  int
	Window time.Duration
	// Now overrides the clock used to pick the window slot.
	Now func() time.Time
}

// FixedWindowLimiter allows Limit calls per key in each Window-aligned slot.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

// NewFixedWindowLimiter builds a limiter on top of an existing client.
func NewFixedWindowLimiter(client *redis.Client, opts Options) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if opts.Limit <= 0 || opts.Window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FixedWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  opts.Limit,
		window: opts.Window,
		now:    now,
	}, nil
}

// Allow counts one call against key. Redis errors are returned with a denying
// decision so callers fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	nowMs := l.now().UTC().UnixMilli()
	slot := nowMs / windowMs
	retryAfter := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond

	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return Decision{RetryAfter: retryAfter}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= int64(l.limit),
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// Limit returns the per-window quota.
func (l *FixedWindowLimiter) Limit() int {
	return l.limit
}
