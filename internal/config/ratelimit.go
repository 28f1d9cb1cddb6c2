package config

import (
	"strings"
	"time"
)

// SignInLimitConfig configures the per-email sign-in limiter.
type SignInLimitConfig struct {
	Attempts int
	Window   time.Duration
	Backend  string // "redis" or "memory"
	Prefix   string
}

// ThrottleConfig configures the per-client token bucket in front of
// /api/auth. It only runs when Redis is reachable.
type ThrottleConfig struct {
	Enabled     bool
	Burst       int
	Rate        float64 // tokens per second
	KeyStrategy string  // ip, ip_route or user_route
	Prefix      string
}

// LoadSignInLimitConfig reads SIGNIN_RATE_LIMIT_*. Defaults are 5 attempts
// per 15 minutes.
func LoadSignInLimitConfig() SignInLimitConfig {
	c := SignInLimitConfig{
		Attempts: envInt("SIGNIN_RATE_LIMIT_ATTEMPTS", 5),
		Window:   envDur("SIGNIN_RATE_LIMIT_WINDOW", 15*time.Minute),
		Backend:  strings.ToLower(envStr("SIGNIN_RATE_LIMIT_BACKEND", "redis")),
		Prefix:   envStr("SIGNIN_RATE_LIMIT_PREFIX", "signin"),
	}
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.Backend != "memory" {
		c.Backend = "redis"
	}
	return c
}

// LoadThrottleConfig reads THROTTLE_*. The default bucket allows bursts of
// 30 and refills one request per second.
func LoadThrottleConfig() ThrottleConfig {
	c := ThrottleConfig{
		Enabled:     envBool("THROTTLE_ENABLED", true),
		Burst:       envInt("THROTTLE_BURST", 30),
		Rate:        envFloat("THROTTLE_RATE", 1),
		KeyStrategy: strings.ToLower(envStr("THROTTLE_KEY_STRATEGY", "ip_route")),
		Prefix:      envStr("THROTTLE_PREFIX", "throttle"),
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.Rate <= 0 {
		c.Rate = 1
	}
	switch c.KeyStrategy {
	case "ip", "ip_route", "user_route":
	default:
		c.KeyStrategy = "ip_route"
	}
	return c
}
