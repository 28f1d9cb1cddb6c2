package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/repository/repofake"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	f := newFixture(t)

	tok, err := f.issuer.CreateAccessToken(auth.Identity{UserID: 42, Email: "a@b.com", Role: model.RoleEmployer})
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(tok.ExpiresAt))

	c, err := f.issuer.VerifyAccessToken(tok.Token)
	require.NoError(t, err)
	uid, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, "a@b.com", c.Email)
	assert.Equal(t, model.RoleEmployer, c.Role)
	assert.Equal(t, auth.TypeAccess, c.Type)
	assert.Equal(t, "jobboard", c.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"jobboard-users"}, c.Audience)
	assert.NotEmpty(t, c.ID)
}

func TestAccessTokensAreUnique(t *testing.T) {
	f := newFixture(t)
	id := auth.Identity{UserID: 1, Email: "a@b.com", Role: model.RoleUser}

	a, err := f.issuer.CreateAccessToken(id)
	require.NoError(t, err)
	b, err := f.issuer.CreateAccessToken(id)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestExpiredAccessTokenFails(t *testing.T) {
	f := newFixture(t)
	tok, err := f.issuer.CreateAccessToken(auth.Identity{UserID: 1, Role: model.RoleUser})
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour - time.Second)
	_, err = f.issuer.VerifyAccessToken(tok.Token)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.issuer.VerifyAccessToken(tok.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	sign := func(method jwt.SigningMethod, key any, mutate func(*auth.Claims)) string {
		c := auth.Claims{
			Type: auth.TypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "jobboard",
				Subject:   "1",
				Audience:  jwt.ClaimStrings{"jobboard-users"},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		if mutate != nil {
			mutate(&c)
		}
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other-secret"), nil)},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte(testSecret), nil)},
		{"unsigned", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, nil)},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte(testSecret), func(c *auth.Claims) { c.Issuer = "evil" })},
		{"wrong audience", sign(jwt.SigningMethodHS256, []byte(testSecret), func(c *auth.Claims) { c.Audience = jwt.ClaimStrings{"admin-panel"} })},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte(testSecret), func(c *auth.Claims) { c.ExpiresAt = nil })},
		{"bad subject", sign(jwt.SigningMethodHS256, []byte(testSecret), func(c *auth.Claims) { c.Subject = "alice" })},
		{"unknown type", sign(jwt.SigningMethodHS256, []byte(testSecret), func(c *auth.Claims) { c.Type = "id" })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.issuer.VerifyToken(tt.token)
			// one sentinel whatever failed
			assert.True(t, errors.Is(err, auth.ErrInvalidToken))
			assert.Equal(t, auth.ErrInvalidToken.Error(), err.Error())
		})
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	access, err := f.issuer.CreateAccessToken(auth.Identity{UserID: 1, Role: model.RoleUser})
	require.NoError(t, err)
	refresh, err := f.issuer.CreateRefreshToken(ctx, 1, "agent")
	require.NoError(t, err)

	_, err = f.issuer.VerifyRefreshToken(access.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = f.issuer.VerifyAccessToken(refresh.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	c, err := f.issuer.VerifyRefreshToken(refresh.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.TypeRefresh, c.Type)
	assert.Empty(t, c.Role)
}

func TestCreateRefreshTokenPersistsRow(t *testing.T) {
	f := newFixture(t)

	tok, err := f.issuer.CreateRefreshToken(context.Background(), 9, "firefox")
	require.NoError(t, err)

	row, err := f.tokens.GetByHash(context.Background(), utils.HashToken(tok.Token))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), row.UserID)
	assert.Equal(t, "firefox", row.DeviceInfo)
	assert.False(t, row.Revoked)
	assert.True(t, f.clock.Now().Add(7*24*time.Hour).Equal(row.ExpiresAt))
	assert.Equal(t, model.TokenIssued, row.State(f.clock.Now()))
}

func TestRefreshTokenDeviceInfoKeepsRunesWhole(t *testing.T) {
	f := newFixture(t)

	tok, err := f.issuer.CreateRefreshToken(context.Background(), 9, strings.Repeat("é", 300))
	require.NoError(t, err)

	row, err := f.tokens.GetByHash(context.Background(), utils.HashToken(tok.Token))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(row.DeviceInfo))
	assert.Equal(t, 255, utf8.RuneCountInString(row.DeviceInfo))
}

func TestCreateRefreshTokenFailsWhenNotPersisted(t *testing.T) {
	tokens := repofake.NewFakeTokenRepo()
	tokens.StoreErr = errors.New("disk full")
	issuer, err := auth.NewIssuer(testTokenConfig, tokens)
	require.NoError(t, err)

	tok, err := issuer.CreateRefreshToken(context.Background(), 1, "")
	assert.ErrorIs(t, err, auth.ErrTokenPersist)
	assert.Empty(t, tok.Token)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := auth.NewIssuer(config.TokenConfig{AccessTTL: time.Hour, RefreshTTL: time.Hour}, repofake.NewFakeTokenRepo())
	assert.Error(t, err)
}
