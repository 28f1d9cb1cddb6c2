package handler

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/iliyamo/jobboard-auth/internal/auth"
	"github.com/iliyamo/jobboard-auth/internal/config"
	"github.com/iliyamo/jobboard-auth/internal/middleware"
	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/repository/repofake"
)

// fakeIdP is a token endpoint that answers every code with an id_token for
// the configured claims.
type fakeIdP struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	issuer string

	mu       sync.Mutex
	nonce    string
	email    string
	verified bool
	verifier string
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &fakeIdP{key: key, email: "oauth@example.com", verified: true}
	idp.srv = httptest.NewServer(http.HandlerFunc(idp.token))
	idp.issuer = idp.srv.URL
	t.Cleanup(idp.srv.Close)
	return idp
}

func (p *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.verifier = r.PostForm.Get("code_verifier")
	claims := jwt.MapClaims{
		"iss":            p.issuer,
		"aud":            "client-id",
		"sub":            "provider-subject-1",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
		"nonce":          p.nonce,
		"email":          p.email,
		"email_verified": p.verified,
		"given_name":     "Olive",
		"family_name":    "Auth",
	}
	p.mu.Unlock()

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "provider-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func (p *fakeIdP) provider() *OIDCProvider {
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{p.key.Public()}}
	return &OIDCProvider{
		Name: "test",
		OAuth2: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint:     oauth2.Endpoint{AuthURL: p.srv.URL + "/authorize", TokenURL: p.srv.URL + "/token"},
			RedirectURL:  "http://localhost/api/auth/oauth/test/callback",
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: oidc.NewVerifier(p.issuer, keys, &oidc.Config{ClientID: "client-id"}),
	}
}

type oauthApp struct {
	e     *echo.Echo
	users *repofake.FakeUserRepo
	idp   *fakeIdP
}

func newOAuthApp(t *testing.T) *oauthApp {
	t.Helper()
	users := repofake.NewFakeUserRepo()
	tokens := repofake.NewFakeTokenRepo()
	issuer, err := auth.NewIssuer(config.TokenConfig{
		Secret:     "oauth-test-secret-oauth-test-secret",
		Issuer:     "jobboard",
		Audience:   "jobboard-users",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, tokens)
	require.NoError(t, err)
	svc := auth.NewService(auth.Deps{Users: users, Tokens: tokens, Issuer: issuer, BcryptCost: bcrypt.MinCost})

	idp := newFakeIdP(t)
	h := NewOAuthHandler(svc, []*OIDCProvider{idp.provider()}, "/dashboard", true, zap.NewNop())
	e := echo.New()
	e.GET("/api/auth/oauth/:provider", h.Start)
	e.GET("/api/auth/oauth/:provider/callback", h.Callback)
	return &oauthApp{e: e, users: users, idp: idp}
}

func (a *oauthApp) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// start runs the redirect leg and primes the IdP with the nonce it sent.
func (a *oauthApp) start(t *testing.T) (state string, stateCookie *http.Cookie) {
	t.Helper()
	rec := a.get("/api/auth/oauth/test")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.NotEmpty(t, q.Get("code_challenge"))
	require.NotEmpty(t, q.Get("nonce"))

	a.idp.mu.Lock()
	a.idp.nonce = q.Get("nonce")
	a.idp.mu.Unlock()

	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie)
	return q.Get("state"), stateCookie
}

func TestOAuthStartSetsLaxStateCookie(t *testing.T) {
	a := newOAuthApp(t)
	_, ck := a.start(t)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
}

func TestOAuthUnknownProvider(t *testing.T) {
	a := newOAuthApp(t)
	assert.Equal(t, http.StatusNotFound, a.get("/api/auth/oauth/nope").Code)
}

func TestOAuthCallbackCreatesAccountAndSignsIn(t *testing.T) {
	a := newOAuthApp(t)
	state, ck := a.start(t)

	rec := a.get("/api/auth/oauth/test/callback?code=abc&state="+url.QueryEscape(state), ck)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	names := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = c
	}
	require.Contains(t, names, middleware.AccessCookie)
	require.Contains(t, names, middleware.RefreshCookie)
	assert.Equal(t, http.SameSiteStrictMode, names[middleware.AccessCookie].SameSite)
	assert.Less(t, names[oauthStateCookie].MaxAge, 0)

	u, err := a.users.GetByEmail(context.Background(), "oauth@example.com")
	require.NoError(t, err)
	assert.False(t, u.HasPassword())
	assert.True(t, u.IsEmailVerified)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, "Olive", u.FirstName)

	a.idp.mu.Lock()
	assert.NotEmpty(t, a.idp.verifier, "PKCE verifier sent on exchange")
	a.idp.mu.Unlock()
}

func TestOAuthCallbackRejectsStateMismatch(t *testing.T) {
	a := newOAuthApp(t)
	_, ck := a.start(t)

	rec := a.get("/api/auth/oauth/test/callback?code=abc&state=forged", ck)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.get("/api/auth/oauth/test/callback?code=abc&state=whatever")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackRejectsNonceMismatch(t *testing.T) {
	a := newOAuthApp(t)
	state, ck := a.start(t)
	a.idp.mu.Lock()
	a.idp.nonce = "replayed"
	a.idp.mu.Unlock()

	rec := a.get("/api/auth/oauth/test/callback?code=abc&state="+url.QueryEscape(state), ck)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOAuthCallbackUnverifiedEmail(t *testing.T) {
	a := newOAuthApp(t)
	a.idp.verified = false
	state, ck := a.start(t)

	rec := a.get("/api/auth/oauth/test/callback?code=abc&state="+url.QueryEscape(state), ck)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?error=oauth_rejected", rec.Header().Get("Location"))

	_, err := a.users.GetByEmail(context.Background(), "oauth@example.com")
	assert.Error(t, err)
}

func TestOAuthCallbackProviderDenied(t *testing.T) {
	a := newOAuthApp(t)
	state, ck := a.start(t)

	rec := a.get("/api/auth/oauth/test/callback?error=access_denied&state="+url.QueryEscape(state), ck)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard?error=oauth_denied", rec.Header().Get("Location"))
}

func TestNewOIDCProviderFromConfig(t *testing.T) {
	pc := &oidc.ProviderConfig{
		IssuerURL: "https://issuer.example.com",
		AuthURL:   "https://issuer.example.com/auth",
		TokenURL:  "https://issuer.example.com/token",
		JWKSURL:   "https://issuer.example.com/keys",
	}
	p := newOIDCProvider(pc.NewProvider(context.Background()), config.OAuthProvider{
		Name:        "google",
		ClientID:    "id",
		RedirectURL: "http://localhost/cb",
	})
	assert.Equal(t, "google", p.Name)
	assert.Equal(t, "https://issuer.example.com/token", p.OAuth2.Endpoint.TokenURL)
	assert.Equal(t, []string{oidc.ScopeOpenID, "email", "profile"}, p.OAuth2.Scopes)
}

func TestOAuthStateEncoding(t *testing.T) {
	st := oauthState{State: "s", Nonce: "n", Verifier: "v"}
	got, ok := decodeOAuthState(st.encode())
	require.True(t, ok)
	assert.Equal(t, st, got)

	for _, bad := range []string{"", "a.b", "a..c", "a.b.c.d"} {
		_, ok := decodeOAuthState(bad)
		assert.False(t, ok, bad)
	}
}
