package corekit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// AuthScheme is the closed set of authentication schemes an Authenticator
// may implement (spec §4.6).
type AuthScheme int

const (
	AuthSchemeBearer AuthScheme = iota
	AuthSchemeAPIKey
	AuthSchemeBasic
	AuthSchemeOAuth2
)

// TokenRefresher performs the actual network call to mint a new token. It
// is supplied by the host application; the Authenticator only orchestrates
// when and how often it is invoked.
type TokenRefresher func(ctx context.Context) (accessToken, refreshToken string, expiresAt time.Time, err error)

// Authenticator implements spec §4.6: per-scheme request decoration, with
// bearer/OAuth2 tokens refreshed exactly once across any number of
// concurrently-expired callers via singleflight.
type Authenticator struct {
	mu     sync.RWMutex
	scheme AuthScheme

	accessToken  string
	refreshToken string
	expiresAt    time.Time
	loggedOut    bool

	apiKeyHeader string
	apiKeyPrefix string
	apiKeyValue  string

	basicUser string
	basicPass string

	refresher TokenRefresher
	group     singleflight.Group
}

// NewBearerAuthenticator builds a Bearer authenticator, optionally with a
// refresh handler invoked when the token has expired.
func NewBearerAuthenticator(accessToken string, expiresAt time.Time, refresher TokenRefresher) *Authenticator {
	return &Authenticator{scheme: AuthSchemeBearer, accessToken: accessToken, expiresAt: expiresAt, refresher: refresher}
}

// NewAPIKeyAuthenticator builds an ApiKey authenticator that sets header to
// prefix+value.
func NewAPIKeyAuthenticator(header, prefix, value string) *Authenticator {
	return &Authenticator{scheme: AuthSchemeAPIKey, apiKeyHeader: header, apiKeyPrefix: prefix, apiKeyValue: value}
}

// NewBasicAuthenticator builds a Basic authenticator.
func NewBasicAuthenticator(user, pass string) *Authenticator {
	return &Authenticator{scheme: AuthSchemeBasic, basicUser: user, basicPass: pass}
}

// NewOAuth2Authenticator builds an OAuth2 client-credentials authenticator.
// The token endpoint/scopes/redirect live in the refresher closure supplied
// by the caller, matching spec §4.6's scheme parameter list without the
// engine needing to know an HTTP client of its own for token exchange.
func NewOAuth2Authenticator(accessToken, refreshToken string, expiresAt time.Time, refresher TokenRefresher) *Authenticator {
	return &Authenticator{scheme: AuthSchemeOAuth2, accessToken: accessToken, refreshToken: refreshToken, expiresAt: expiresAt, refresher: refresher}
}

// Authenticate decorates req per scheme, refreshing first if the token is
// past expiry (spec §4.6).
func (a *Authenticator) Authenticate(ctx context.Context, req *http.Request) error {
	switch a.scheme {
	case AuthSchemeAPIKey:
		a.mu.RLock()
		req.Header.Set(a.apiKeyHeader, a.apiKeyPrefix+a.apiKeyValue)
		a.mu.RUnlock()
		return nil
	case AuthSchemeBasic:
		a.mu.RLock()
		user, pass := a.basicUser, a.basicPass
		a.mu.RUnlock()
		req.SetBasicAuth(user, pass)
		return nil
	case AuthSchemeBearer, AuthSchemeOAuth2:
		if !a.IsValid() {
			if err := a.Refresh(ctx); err != nil {
				return err
			}
		}
		a.mu.RLock()
		token := a.accessToken
		a.mu.RUnlock()
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	default:
		return &ClientError{Type: ErrorTypeAuthenticationRequired, Message: "unknown auth scheme"}
	}
}

// IsValid reports whether the current token has not yet expired. Schemes
// without expiry (ApiKey, Basic) are always valid.
func (a *Authenticator) IsValid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch a.scheme {
	case AuthSchemeBearer, AuthSchemeOAuth2:
		if a.loggedOut || a.accessToken == "" {
			return false
		}
		return a.expiresAt.IsZero() || time.Now().Before(a.expiresAt)
	default:
		return true
	}
}

// Refresh mints a new token. Concurrent callers observing an expired token
// coalesce onto a single in-flight refresh: all see the same outcome,
// success or TokenRefreshFailed (spec §4.6).
func (a *Authenticator) Refresh(ctx context.Context) error {
	if a.refresher == nil {
		return &ClientError{Type: ErrorTypeTokenRefreshFailed, Message: "no refresh handler configured"}
	}
	_, err, _ := a.group.Do("refresh", func() (any, error) {
		access, refresh, expiresAt, err := a.refresher(ctx)
		if err != nil {
			return nil, &ClientError{Type: ErrorTypeTokenRefreshFailed, Message: "token refresh failed", Cause: err}
		}
		a.mu.Lock()
		a.accessToken = access
		if refresh != "" {
			a.refreshToken = refresh
		}
		a.expiresAt = expiresAt
		a.loggedOut = false
		a.mu.Unlock()
		return nil, nil
	})
	return err
}

// Logout clears all held credentials.
func (a *Authenticator) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = ""
	a.refreshToken = ""
	a.expiresAt = time.Time{}
	a.loggedOut = true
}
