package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/database"
	"github.com/iliyamo/jobboard-auth/internal/handler"
	"github.com/iliyamo/jobboard-auth/internal/logging"
	"github.com/iliyamo/jobboard-auth/internal/queue"
	"github.com/iliyamo/jobboard-auth/internal/ratelimit"
	"github.com/iliyamo/jobboard-auth/internal/repository"
	"github.com/iliyamo/jobboard-auth/internal/router"
	"github.com/iliyamo/jobboard-auth/internal/service"
	"github.com/iliyamo/jobboard-auth/internal/telemetry"
)

const appName = "jobboard-auth"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load() // fails fast on a missing secret in strict mode
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}
	displayAppname(appName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := telemetry.Setup(ctx, appName, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(sctx)
	}()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable; using in-process limiter", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	audit := repository.NewAuditRepo(db)

	limiter, closeLimiter := signInLimiter(config.LoadSignInLimitConfig(), rdb, log)
	defer closeLimiter()

	var events auth.Publisher = service.DirectPublisher{Sink: audit}
	if cfg.RabbitURL != "" {
		pub := service.NewAMQPPublisher(cfg.RabbitURL, log)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, audit, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	issuer, err := auth.NewIssuer(cfg.Token, tokens)
	if err != nil {
		return err
	}
	svc := auth.NewService(auth.Deps{
		Users:      users,
		Tokens:     tokens,
		Issuer:     issuer,
		Limiter:    limiter,
		Events:     events,
		Logger:     log.Named("auth"),
		BcryptCost: cfg.BcryptCost,
	})

	secure := cfg.IsProduction()
	deps := router.Deps{
		Auth:           handler.NewAuthHandler(svc, secure, log),
		Admin:          handler.NewAdminHandler(svc, audit, log),
		Sessions:       svc,
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Ready:          map[string]handler.Check{"mysql": db.PingContext},
		Logger:         log,
	}
	if rdb != nil {
		deps.Ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if oh := oauthHandler(ctx, svc, secure, log); oh != nil {
		deps.OAuth = oh
	}
	if tc := config.LoadThrottleConfig(); tc.Enabled && rdb != nil {
		deps.Throttle = ratelimit.NewTokenBucket(ratelimit.BucketConfig{Burst: tc.Burst, Rate: tc.Rate, Prefix: tc.Prefix}, rdb)
		deps.ThrottleKey = tc.KeyStrategy
	}
	e := router.New(deps)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(e, appName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env), zap.Bool("strict", cfg.Strict))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down")
	return shutdown(server)
}

// signInLimiter picks the Redis limiter when Redis is reachable so every
// instance shares one count per email.
func signInLimiter(c config.SignInLimitConfig, rdb *redis.Client, log *zap.Logger) (ratelimit.Limiter, func()) {
	rc := ratelimit.Config{Limit: c.Attempts, Window: c.Window, Prefix: c.Prefix}
	if c.Backend == "redis" && rdb != nil {
		log.Info("sign-in limiter", zap.String("backend", "redis"))
		return ratelimit.NewRedis(rc, rdb), func() {}
	}
	log.Info("sign-in limiter", zap.String("backend", "memory"))
	m := ratelimit.NewMemory(rc)
	return m, func() { _ = m.Close() }
}

// oauthHandler discovers every configured provider. A provider whose
// discovery fails is skipped so a flaky IdP cannot keep the service down.
func oauthHandler(ctx context.Context, svc *auth.Service, secure bool, log *zap.Logger) *handler.OAuthHandler {
	oc := config.LoadOAuthConfig()
	if len(oc.Providers) == 0 {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var providers []*handler.OIDCProvider
	for _, p := range oc.Providers {
		op, err := handler.NewOIDCProvider(dctx, p)
		if err != nil {
			log.Warn("oauth provider disabled", zap.String("provider", p.Name), zap.Error(err))
			continue
		}
		providers = append(providers, op)
	}
	if len(providers) == 0 {
		return nil
	}
	return handler.NewOAuthHandler(svc, providers, oc.SuccessRedirect, secure, log)
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(name string) {
	figure.NewFigure(name, "cybermedium", true).Print()
	fmt.Println()
}
