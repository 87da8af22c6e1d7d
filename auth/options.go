package auth

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithKeySetProvider replaces the default per-call HTTP fetcher, e.g. with a
// CachingProvider or a test fake.
func WithKeySetProvider(p KeySetProvider) Option {
	return func(a *Authenticator) {
		if p != nil {
			a.provider = p
		}
	}
}

// WithHTTPClient sets the client used by the default fetcher.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) { a.provider = NewHTTPFetcher(c) }
}

// WithRolesClaim sets the claim the roles are read from.
func WithRolesClaim(name string) Option {
	return func(a *Authenticator) { a.rolesClaim = name }
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) Option {
	return func(a *Authenticator) {
		a.policy.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for exp.
func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) { a.policy.Leeway = d }
}

// WithStatusCodes overrides the status codes of key-resolution failures.
func WithStatusCodes(codes StatusCodes) Option {
	return func(a *Authenticator) { a.codes = codes.normalize() }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.policy.Now = now }
}
