package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

// oauthStateCookie carries state, nonce and PKCE verifier between the
// redirect and the callback. It must be Lax: the callback is a top-level
// cross-site navigation and a Strict cookie would not be sent.
const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// OIDCProvider is one configured OpenID Connect provider.
type OIDCProvider struct {
	Name     string
	OAuth2   *oauth2.Config
	Verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider runs discovery against the issuer.
func NewOIDCProvider(ctx context.Context, p config.OAuthProvider) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, p.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery %s: %w", p.Name, err)
	}
	return newOIDCProvider(provider, p), nil
}

func newOIDCProvider(provider *oidc.Provider, p config.OAuthProvider) *OIDCProvider {
	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return &OIDCProvider{
		Name: p.Name,
		OAuth2: &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  p.RedirectURL,
			Scopes:       scopes,
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: p.ClientID}),
	}
}

// OAuthHandler serves /api/auth/oauth/:provider and its callback.
type OAuthHandler struct {
	svc       *auth.Service
	providers map[string]*OIDCProvider
	success   string
	cookies   cookieJar
	log       *zap.Logger
}

func NewOAuthHandler(svc *auth.Service, providers []*OIDCProvider, successRedirect string, secureCookies bool, log *zap.Logger) *OAuthHandler {
	h := &OAuthHandler{
		svc:       svc,
		providers: make(map[string]*OIDCProvider, len(providers)),
		success:   successRedirect,
		cookies: cookieJar{
			secure:     secureCookies,
			accessTTL:  svc.Issuer().AccessTTL(),
			refreshTTL: svc.Issuer().RefreshTTL(),
		},
		log: log,
	}
	for _, p := range providers {
		h.providers[p.Name] = p
	}
	return h
}

type oauthState struct {
	State    string
	Nonce    string
	Verifier string
}

func (s oauthState) encode() string {
	return s.State + "." + s.Nonce + "." + s.Verifier
}

func decodeOAuthState(v string) (oauthState, bool) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return oauthState{}, false
	}
	return oauthState{State: parts[0], Nonce: parts[1], Verifier: parts[2]}, true
}

// Start: GET /api/auth/oauth/:provider.
func (h *OAuthHandler) Start(c echo.Context) error {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	state, err := utils.RandomString(24)
	if err != nil {
		return writeError(c, h.log, err)
	}
	nonce, err := utils.RandomString(24)
	if err != nil {
		return writeError(c, h.log, err)
	}
	st := oauthState{State: state, Nonce: nonce, Verifier: oauth2.GenerateVerifier()}
	c.SetCookie(h.stateCookie(st.encode(), int(oauthStateTTL/time.Second)))

	target := p.OAuth2.AuthCodeURL(st.State,
		oidc.Nonce(st.Nonce),
		oauth2.S256ChallengeOption(st.Verifier))
	return c.Redirect(http.StatusFound, target)
}

// Callback: GET /api/auth/oauth/:provider/callback.
func (h *OAuthHandler) Callback(c echo.Context) error {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	ck, err := c.Cookie(oauthStateCookie)
	c.SetCookie(h.stateCookie("", -1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing oauth state"})
	}
	st, ok := decodeOAuthState(ck.Value)
	if !ok || c.QueryParam("state") != st.State {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth state"})
	}
	if e := c.QueryParam("error"); e != "" {
		h.log.Info("oauth provider refused", zap.String("provider", p.Name), zap.String("error", e))
		return c.Redirect(http.StatusFound, h.failureURL("oauth_denied"))
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	id, err := h.exchange(ctx, p, code, st)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.String("provider", p.Name), zap.Error(err))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	res, err := h.svc.SignInOAuth(ctx, id, clientOf(c))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Redirect(http.StatusFound, h.failureURL("oauth_rejected"))
		}
		return writeError(c, h.log, err)
	}
	h.cookies.setTokens(c, res)
	return c.Redirect(http.StatusFound, h.success)
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (h *OAuthHandler) exchange(ctx context.Context, p *OIDCProvider, code string, st oauthState) (auth.OAuthIdentity, error) {
	tok, err := p.OAuth2.Exchange(ctx, code, oauth2.VerifierOption(st.Verifier))
	if err != nil {
		return auth.OAuthIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return auth.OAuthIdentity{}, errors.New("no id_token in token response")
	}
	idt, err := p.Verifier.Verify(ctx, raw)
	if err != nil {
		return auth.OAuthIdentity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idt.Nonce != st.Nonce {
		return auth.OAuthIdentity{}, errors.New("id_token nonce mismatch")
	}
	var cl idTokenClaims
	if err := idt.Claims(&cl); err != nil {
		return auth.OAuthIdentity{}, fmt.Errorf("decode id_token claims: %w", err)
	}
	return auth.OAuthIdentity{
		Provider:      p.Name,
		Subject:       idt.Subject,
		Email:         cl.Email,
		EmailVerified: cl.EmailVerified,
		FirstName:     cl.GivenName,
		LastName:      cl.FamilyName,
	}, nil
}

func (h *OAuthHandler) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     oauthStateCookie,
		Value:    value,
		Path:     "/api/auth/oauth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *OAuthHandler) failureURL(reason string) string {
	u, err := url.Parse(h.success)
	if err != nil {
		return h.success
	}
	q := u.Query()
	q.Set("error", reason)
	u.RawQuery = q.Encode()
	return u.String()
}
