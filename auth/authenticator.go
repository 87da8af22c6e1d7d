package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	jose "github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"
)

const jwksPath = ".well-known/jwks.json"

// JWKSURI returns the key set location for an authority. The authority is
// used verbatim, so it is expected to end with a slash.
func JWKSURI(authority string) string {
	return authority + jwksPath
}

// Authenticator turns an inbound request into a User. It holds only
// immutable configuration and a KeySetProvider and is safe for concurrent
// use.
type Authenticator struct {
	authority  string
	jwksURI    string
	provider   KeySetProvider
	policy     Policy
	rolesClaim string
	codes      StatusCodes
	logger     *zap.Logger
}

// New creates an Authenticator trusting authority, which is both the
// expected issuer and the base of the JWKS URI.
func New(authority string, opts ...Option) (*Authenticator, error) {
	if authority == "" {
		return nil, errors.New("authority is required")
	}
	a := &Authenticator{
		authority:  authority,
		jwksURI:    JWKSURI(authority),
		provider:   NewHTTPFetcher(nil),
		policy:     Policy{Issuer: authority},
		rolesClaim: DefaultRolesClaim,
		codes:      DefaultStatusCodes(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate is the baseline entry point: it fetches the key set without
// caching and runs the full pipeline against authority.
func Authenticate(ctx context.Context, r *http.Request, authority string) (*User, error) {
	a, err := New(authority)
	if err != nil {
		return nil, newAuthError(KindInternal, http.StatusInternalServerError, err.Error(), err)
	}
	return a.Authenticate(ctx, r)
}

// Authority returns the trusted issuer.
func (a *Authenticator) Authority() string { return a.authority }

// JWKSURI returns the key set location derived from the authority.
func (a *Authenticator) JWKSURI() string { return a.jwksURI }

// KeySet returns the key set currently served by the provider.
func (a *Authenticator) KeySet(ctx context.Context) (*KeySet, error) {
	set, err := a.provider.KeySet(ctx, a.jwksURI)
	if err != nil {
		return nil, keySetError(err)
	}
	return set, nil
}

// Authenticate runs fetch, extract, resolve, validate and map in order. The
// first failing stage's *AuthError is returned unchanged.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*User, error) {
	return a.AuthenticateHeader(ctx, r.Header)
}

// AuthenticateHeader is Authenticate for callers that only hold headers.
func (a *Authenticator) AuthenticateHeader(ctx context.Context, h http.Header) (*User, error) {
	set, err := a.KeySet(ctx)
	if err != nil {
		a.logger.Debug("key set unavailable", zap.String("jwks_uri", a.jwksURI), zap.Error(err))
		return nil, err
	}

	token, err := ExtractToken(h)
	if err != nil {
		return nil, err
	}

	kid, err := tokenKeyID(token, a.codes)
	if err != nil {
		return nil, err
	}

	key, err := lookupKey(set, kid, a.codes)
	if err != nil {
		key, err = a.retryWithRefresh(ctx, kid, err)
		if err != nil {
			return nil, err
		}
	}

	claims, err := Validate(token, key, a.policy)
	if err != nil {
		a.logger.Debug("token validation failed", zap.String("kid", kid), zap.Error(err))
		return nil, err
	}

	return ToUser(claims, a.rolesClaim)
}

// retryWithRefresh asks a caching provider for a fresh copy once when the
// kid is unknown, which covers signing key rotation.
func (a *Authenticator) retryWithRefresh(ctx context.Context, kid string, lookupErr error) (*jose.JSONWebKey, error) {
	refresher, ok := a.provider.(Refresher)
	if !ok {
		return nil, lookupErr
	}
	set, err := refresher.Refresh(ctx, a.jwksURI)
	if err != nil {
		a.logger.Warn("key set refresh failed", zap.String("kid", kid), zap.Error(err))
		return nil, lookupErr
	}
	a.logger.Debug("key set refreshed for unknown kid", zap.String("kid", kid), zap.Int("keys", set.Len()))
	return lookupKey(set, kid, a.codes)
}

func keySetError(err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
		fmt.Sprintf("unable to obtain key set: %v", err), err)
}
