// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is used when JWT_SECRET is unset outside strict mode. It is
// never accepted in production.
const DevJWTSecret = "insecure-development-secret-change-me"

// minStrictSecretLen is the shortest signing secret accepted in strict mode.
const minStrictSecretLen = 32

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env        string // application environment (development, test, production)
	Port       string // HTTP port to listen on
	Strict     bool   // refuse insecure defaults
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	DBMigrate  bool   // run embedded migrations at startup
	BcryptCost int    // bcrypt cost for password hashing
	RabbitURL  string // AMQP url for audit events; empty disables publishing
	Token      TokenConfig

	// CORSOrigins lists the browser origins allowed to call the API with
	// credentials. Empty disables CORS.
	CORSOrigins []string

	// TrustedProxies lists the proxy ranges whose X-Forwarded-For header is
	// believed. Empty means the peer address is the client address.
	TrustedProxies []*net.IPNet

	// Warnings collects non-fatal problems found while loading, such as the
	// development secret being in use. The caller logs them once a logger
	// exists.
	Warnings []string
}

// TokenConfig configures the JWT issuer. Both lifetimes are configuration;
// the 7 day defaults reproduce the historical behaviour.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (c Config) IsProduction() bool { return c.Env == "production" }

// Load reads a .env file if one exists and then the process environment.
// Every missing or malformed required variable is reported in one error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is normal outside local development

	var errs []error
	l := loader{errs: &errs}

	env := strings.ToLower(envStr("APP_ENV", "development"))
	cfg := Config{
		Env:        env,
		Port:       envStr("APP_PORT", "8080"),
		Strict:     envBool("AUTH_STRICT", env == "production"),
		DBUser:     l.must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"),
		DBHost:     envStr("DB_HOST", "127.0.0.1"),
		DBPort:     envStr("DB_PORT", "3306"),
		DBName:     l.must("DB_NAME"),
		DBMigrate:  envBool("DB_MIGRATE", false),
		BcryptCost: l.intVal("BCRYPT_COST", 12),
		RabbitURL:  rabbitURL(),
		Token: TokenConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Issuer:     envStr("JWT_ISSUER", "jobboard"),
			Audience:   envStr("JWT_AUDIENCE", "jobboard-users"),
			AccessTTL:  l.durVal("ACCESS_TOKEN_TTL", 7*24*time.Hour),
			RefreshTTL: l.durVal("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		CORSOrigins:    splitList(os.Getenv("CORS_ALLOW_ORIGINS")),
		TrustedProxies: l.cidrList("TRUSTED_PROXIES"),
	}
	if cfg.IsProduction() {
		cfg.Strict = true
	}

	switch {
	case cfg.Token.Secret == "" && cfg.Strict:
		errs = append(errs, errors.New("JWT_SECRET must be set in strict or production mode"))
	case cfg.Token.Secret == "":
		cfg.Token.Secret = DevJWTSecret
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET unset; using insecure development secret")
	case cfg.Strict && len(cfg.Token.Secret) < minStrictSecretLen:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in strict mode", minStrictSecretLen))
	case cfg.Strict && cfg.Token.Secret == DevJWTSecret:
		errs = append(errs, errors.New("JWT_SECRET must not be the development default in strict mode"))
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// loader accumulates errors instead of exiting on the first bad variable.
type loader struct{ errs *[]error }

// must retrieves the value of a required environment variable.
func (l loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		*l.errs = append(*l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l loader) intVal(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
		return def
	}
	return n
}

func (l loader) durVal(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		*l.errs = append(*l.errs, fmt.Errorf("invalid duration for %s: %q", key, s))
		return def
	}
	return d
}

// cidrList parses a list of CIDR ranges. A bare address is taken as a
// single-host range.
func (l loader) cidrList(key string) []*net.IPNet {
	var out []*net.IPNet
	for _, item := range splitList(os.Getenv(key)) {
		if !strings.Contains(item, "/") {
			if ip := net.ParseIP(item); ip != nil {
				bits := 128
				if ip.To4() != nil {
					ip, bits = ip.To4(), 32
				}
				out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, n, err := net.ParseCIDR(item)
		if err != nil {
			*l.errs = append(*l.errs, fmt.Errorf("invalid CIDR in %s: %q", key, item))
			continue
		}
		out = append(out, n)
	}
	return out
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// splitList splits a comma or space separated env value.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
