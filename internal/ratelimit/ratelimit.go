// Package ratelimit implements a fixed-window counter on Redis. The check is
// a single Lua script so increment, expiry, and TTL read happen atomically;
// concurrent bursts stay approximate, which is acceptable for abuse guarding
// and click dedup, not billing.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter grants or denies a slot for a composite key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// windowScript increments the counter for the key, starts the window on the
// first hit, and returns the count plus the remaining window in milliseconds.
//
// KEYS[1]: counter key
// ARGV[1]: window in milliseconds
var windowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// FixedWindow is a Redis-backed fixed-window limiter.
type FixedWindow struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewFixedWindow creates a limiter allowing limit hits per window. The prefix
// namespaces this policy's counters so distinct policies never share keys.
func NewFixedWindow(client *redis.Client, prefix string, limit int64, window time.Duration) *FixedWindow {
	return &FixedWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Allow consumes a slot for key. A non-nil error means the counting store was
// unreachable; callers decide whether that fails open or closed.
func (f *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := windowScript.Run(
		ctx, f.client,
		[]string{f.prefix + ":" + key},
		f.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected script reply %v", key, vals)
	}

	return evaluate(vals[0], vals[1], f.limit, f.window, time.Now()), nil
}

// evaluate turns a (count, ttl-millis) script reply into a Result.
func evaluate(count, ttlMillis, limit int64, window time.Duration, now time.Time) Result {
	ttl := time.Duration(ttlMillis) * time.Millisecond
	if ttlMillis < 0 {
		ttl = window
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		ResetAt:   now.Add(ttl),
	}
}
