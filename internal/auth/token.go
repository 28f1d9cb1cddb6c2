package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

// Token type discriminators carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const maxDeviceInfoLen = 255

// Identity is what an access token asserts about its bearer.
type Identity struct {
	UserID uint64
	Email  string
	Role   model.Role
}

// Claims is the JWT payload of both token types. Refresh tokens leave Email
// and Role empty.
type Claims struct {
	Email string     `json:"email,omitempty"`
	Role  model.Role `json:"role,omitempty"`
	Type  string     `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// SignedToken is a serialized JWT with its expiry.
type SignedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Issuer mints and verifies HS256 tokens with a fixed issuer and audience.
type Issuer struct {
	cfg    config.TokenConfig
	key    []byte
	store  RefreshStore
	now    func() time.Time
	parser *jwt.Parser
}

// IssuerOption customises an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerClock replaces time.Now for both signing and verification.
func WithIssuerClock(now func() time.Time) IssuerOption { return func(i *Issuer) { i.now = now } }

// NewIssuer fails when the signing secret is empty; config.Load decides
// whether a development secret may stand in.
func NewIssuer(cfg config.TokenConfig, store RefreshStore, opts ...IssuerOption) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token issuer: empty signing secret")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token issuer: lifetimes must be positive")
	}
	i := &Issuer{cfg: cfg, key: []byte(cfg.Secret), store: store, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	return i, nil
}

// AccessTTL and RefreshTTL let the HTTP layer size cookie lifetimes.
func (i *Issuer) AccessTTL() time.Duration  { return i.cfg.AccessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// CreateAccessToken signs a stateless access token for id.
func (i *Issuer) CreateAccessToken(id Identity) (SignedToken, error) {
	claims := i.claims(id.UserID, TypeAccess, i.cfg.AccessTTL)
	claims.Email = id.Email
	claims.Role = id.Role
	return i.sign(claims)
}

// CreateRefreshToken signs a refresh token and records it. The token is
// not returned unless the row was written.
func (i *Issuer) CreateRefreshToken(ctx context.Context, userID uint64, deviceInfo string) (SignedToken, error) {
	tok, rec, err := i.MintRefreshToken(userID, deviceInfo)
	if err != nil {
		return SignedToken{}, err
	}
	if err := i.store.Store(ctx, rec); err != nil {
		return SignedToken{}, fmt.Errorf("%w: %w", ErrTokenPersist, err)
	}
	return tok, nil
}

// MintRefreshToken signs a refresh token and builds its row without
// persisting it, for callers that insert it inside a larger operation.
func (i *Issuer) MintRefreshToken(userID uint64, deviceInfo string) (SignedToken, model.RefreshToken, error) {
	claims := i.claims(userID, TypeRefresh, i.cfg.RefreshTTL)
	tok, err := i.sign(claims)
	if err != nil {
		return SignedToken{}, model.RefreshToken{}, err
	}
	rec := model.RefreshToken{
		UserID:     userID,
		TokenHash:  utils.HashToken(tok.Token),
		DeviceInfo: utils.Truncate(deviceInfo, maxDeviceInfoLen),
		IssuedAt:   claims.IssuedAt.Time.UTC(),
		ExpiresAt:  tok.ExpiresAt,
	}
	return tok, rec, nil
}

// VerifyToken checks signature, algorithm, issuer, audience and expiry.
// Every failure is reported as ErrInvalidToken.
func (i *Issuer) VerifyToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	var claims Claims
	tok, err := i.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return i.key, nil })
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// VerifyAccessToken is VerifyToken plus type == "access".
func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) { return i.verifyType(raw, TypeAccess) }

// VerifyRefreshToken is VerifyToken plus type == "refresh".
func (i *Issuer) VerifyRefreshToken(raw string) (*Claims, error) {
	return i.verifyType(raw, TypeRefresh)
}

func (i *Issuer) verifyType(raw, typ string) (*Claims, error) {
	c, err := i.VerifyToken(raw)
	if err != nil {
		return nil, err
	}
	if c.Type != typ {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (i *Issuer) claims(userID uint64, typ string, ttl time.Duration) Claims {
	now := i.now()
	return Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   strconv.FormatUint(userID, 10),
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
}

func (i *Issuer) sign(c Claims) (SignedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.key)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return SignedToken{Token: signed, ExpiresAt: c.ExpiresAt.Time.UTC()}, nil
}
