package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/queue"
	"github.com/iliyamo/jobboard-auth/internal/ratelimit"
	"github.com/iliyamo/jobboard-auth/internal/repository/repofake"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

const testSecret = "test-secret-test-secret-test-secret"

var testTokenConfig = config.TokenConfig{
	Secret:     testSecret,
	Issuer:     "jobboard",
	Audience:   "jobboard-users",
	AccessTTL:  7 * 24 * time.Hour,
	RefreshTTL: 7 * 24 * time.Hour,
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *auth.Service
	issuer *auth.Issuer
	users  *repofake.FakeUserRepo
	tokens *repofake.FakeTokenRepo
	events *recordingPublisher
	clock  *testClock
}

var client = auth.Client{IP: "203.0.113.7", UserAgent: "test-agent/1.0"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTestClock()
	users := repofake.NewFakeUserRepo()
	tokens := repofake.NewFakeTokenRepo()
	tokens.Now = clock.Now

	issuer, err := auth.NewIssuer(testTokenConfig, tokens, auth.WithIssuerClock(clock.Now))
	require.NoError(t, err)

	limiter := ratelimit.NewMemory(ratelimit.Config{Limit: 5, Window: 15 * time.Minute}, ratelimit.WithClock(clock.Now))
	t.Cleanup(func() { _ = limiter.Close() })

	events := &recordingPublisher{}
	svc := auth.NewService(auth.Deps{
		Users:      users,
		Tokens:     tokens,
		Issuer:     issuer,
		Limiter:    limiter,
		Events:     events,
		Logger:     zap.NewNop(),
		BcryptCost: bcrypt.MinCost,
		Now:        clock.Now,
	})
	return &fixture{svc: svc, issuer: issuer, users: users, tokens: tokens, events: events, clock: clock}
}

func (f *fixture) addUser(t *testing.T, email, password string, role model.Role) model.User {
	t.Helper()
	u := model.User{Email: email, FirstName: "Test", LastName: "User", Role: role, IsActive: true}
	if password != "" {
		hash, err := utils.HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)
		u.PasswordHash = &hash
	}
	require.NoError(t, f.users.Create(context.Background(), &u))
	return u
}
