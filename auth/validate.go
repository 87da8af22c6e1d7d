package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAllowedAlgs is used when a Policy does not list algorithms.
var DefaultAllowedAlgs = []string{"RS256"}

// Policy holds the claim checks applied by Validate.
type Policy struct {
	// Issuer must equal the iss claim exactly.
	Issuer string
	// AllowedAlgs restricts the JWS algorithm. "none" is never accepted.
	AllowedAlgs []string
	// Leeway tolerates clock skew on exp. Zero means exp must be in the future.
	Leeway time.Duration
	// Now overrides the validation clock.
	Now func() time.Time
}

func (p Policy) algorithms(key *jose.JSONWebKey) ([]string, error) {
	allowed := p.AllowedAlgs
	if len(allowed) == 0 {
		allowed = DefaultAllowedAlgs
	}
	allowed = slices.DeleteFunc(slices.Clone(allowed), func(a string) bool { return a == "none" })

	if key.Algorithm == "" {
		return allowed, nil
	}
	if !slices.Contains(allowed, key.Algorithm) {
		return nil, fmt.Errorf("disallowed alg: %s", key.Algorithm)
	}
	return []string{key.Algorithm}, nil
}

// Validate verifies the token signature with key and enforces the policy:
// issuer match, subject present, expiry in the future. Every failure is a
// 401; there is no partial success.
func Validate(token string, key *jose.JSONWebKey, policy Policy) (*Claims, error) {
	if key == nil {
		return nil, invalidToken(errors.New("no verification key"))
	}
	if policy.Issuer == "" {
		return nil, invalidToken(errors.New("no expected issuer configured"))
	}

	algs, err := policy.algorithms(key)
	if err != nil {
		return nil, invalidToken(err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(algs),
		jwt.WithIssuer(policy.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(policy.Leeway),
	}
	if policy.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(policy.Now))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		return nil, invalidToken(err)
	}
	if !parsed.Valid {
		return nil, invalidToken(jwt.ErrTokenUnverifiable)
	}

	if sub, ok := claims["sub"].(string); !ok || sub == "" {
		return nil, invalidToken(fmt.Errorf("%w: sub", jwt.ErrTokenRequiredClaimMissing))
	}

	return &Claims{m: claims}, nil
}

func invalidToken(err error) *AuthError {
	return newAuthError(KindInvalidToken, http.StatusUnauthorized, err.Error(), err)
}
