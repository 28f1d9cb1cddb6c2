// Package ratelimit counts attempts per identifier. Memory and Redis use
// fixed windows: the first attempt for a key opens a window, up to Limit
// attempts are allowed inside it and later ones are rejected until it
// closes. TokenBucket throttles request rates.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more attempt for key is allowed and records it.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
}

// Config is shared by every backend.
type Config struct {
	Limit  int
	Window time.Duration
	Prefix string
}

func (c Config) key(k string) string {
	if c.Prefix == "" {
		return k
	}
	return c.Prefix + ":" + k
}

func decide(cfg Config, count int, ttl time.Duration) Decision {
	d := Decision{Limit: cfg.Limit, Allowed: count <= cfg.Limit}
	if rem := cfg.Limit - count; rem > 0 {
		d.Remaining = rem
	}
	if !d.Allowed {
		if ttl <= 0 {
			ttl = cfg.Window
		}
		d.RetryAfter = ttl
	}
	return d
}
