package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript keeps {tk, ts} per key: the fractional token count and the
// time in ms it was last updated. Tokens accrue continuously at ARGV[3] per
// ms up to ARGV[2]. Returns {allowed, whole tokens left, wait ms}.
var bucketScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local per_ms = tonumber(ARGV[3])

	local b = redis.call('HMGET', KEYS[1], 'tk', 'ts')
	local tk = tonumber(b[1]) or burst
	local ts = tonumber(b[2]) or now
	tk = math.min(burst, tk + math.max(0, now - ts) * per_ms)

	local ok, wait = 0, 0
	if tk >= 1 then
		ok = 1
		tk = tk - 1
	else
		wait = math.ceil((1 - tk) / per_ms)
	end

	redis.call('HSET', KEYS[1], 'tk', tostring(tk), 'ts', now)
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
	return { ok, math.floor(tk), wait }
`)

// BucketConfig sizes a TokenBucket: Burst requests at once, refilled at
// Rate per second.
type BucketConfig struct {
	Burst  int
	Rate   float64
	Prefix string
}

// TokenBucket is a Redis-backed Limiter for request throttling. Unlike the
// fixed-window limiters it smooths bursts instead of resetting on a
// boundary.
type TokenBucket struct {
	cfg BucketConfig
	rdb redis.Scripter
	now func() time.Time
}

func NewTokenBucket(cfg BucketConfig, rdb redis.Scripter) *TokenBucket {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	return &TokenBucket{cfg: cfg, rdb: rdb, now: time.Now}
}

func (b *TokenBucket) Allow(ctx context.Context, key string) (Decision, error) {
	perMs := b.cfg.Rate / 1000
	// an idle bucket is full again after burst/rate; keep it a little longer
	idle := time.Duration(float64(b.cfg.Burst)/b.cfg.Rate*float64(time.Second)) + time.Minute

	k := key
	if b.cfg.Prefix != "" {
		k = b.cfg.Prefix + ":" + key
	}
	vals, err := bucketScript.Run(ctx, b.rdb, []string{k},
		b.now().UnixMilli(), b.cfg.Burst, perMs, idle.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket script: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("token bucket script: unexpected result %v", vals)
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Limit:      b.cfg.Burst,
		Remaining:  int(vals[1]),
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}
