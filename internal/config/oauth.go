package config

import "strings"

// OAuthProvider configures one OpenID Connect provider for social sign-in.
type OAuthProvider struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OAuthConfig lists the enabled providers and where the browser lands after
// a successful callback.
type OAuthConfig struct {
	Providers       map[string]OAuthProvider
	SuccessRedirect string
}

// LoadOAuthConfig reads OAUTH_GOOGLE_*. A provider without a client id is
// left out, which disables its routes.
func LoadOAuthConfig() OAuthConfig {
	cfg := OAuthConfig{
		Providers:       map[string]OAuthProvider{},
		SuccessRedirect: envStr("OAUTH_SUCCESS_REDIRECT", "/"),
	}
	if id := envStr("OAUTH_GOOGLE_CLIENT_ID", ""); id != "" {
		cfg.Providers["google"] = OAuthProvider{
			Name:         "google",
			IssuerURL:    envStr("OAUTH_GOOGLE_ISSUER", "https://accounts.google.com"),
			ClientID:     id,
			ClientSecret: envStr("OAUTH_GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  envStr("OAUTH_GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/oauth/google/callback"),
			Scopes:       strings.Fields(envStr("OAUTH_GOOGLE_SCOPES", "openid email profile")),
		}
	}
	return cfg
}
