package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and arms the expiry on the first
// hit of a window, returning the new count and the remaining window in ms.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { count, ttl }
`)

// Redis is a Limiter shared by every instance that talks to the same Redis.
type Redis struct {
	cfg Config
	rdb redis.Scripter
}

func NewRedis(cfg Config, rdb redis.Scripter) *Redis {
	return &Redis{cfg: cfg, rdb: rdb}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	vals, err := fixedWindowScript.Run(ctx, r.rdb, []string{r.cfg.key(key)}, r.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(vals) != 2 {
		return Decision{}, fmt.Errorf("ratelimit script: unexpected result %v", vals)
	}
	return decide(r.cfg, int(vals[0]), time.Duration(vals[1])*time.Millisecond), nil
}
