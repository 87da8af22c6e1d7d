package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrInvalidClaimType is returned when a claim has an unexpected type
	ErrInvalidClaimType = errors.New("invalid claim type")
)

// Claims is the verified claim set of a token. It can only be obtained from
// Validate, so holding a *Claims means signature and policy checks passed.
type Claims struct {
	m jwt.MapClaims
}

// Subject returns the sub claim. It fails rather than defaulting when the
// claim is absent, empty or not a string.
func (c *Claims) Subject() (string, error) {
	raw, ok := c.m["sub"]
	if !ok {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	sub, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: sub is %T", ErrInvalidClaimType, raw)
	}
	if sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// Issuer returns the iss claim or "".
func (c *Claims) Issuer() string {
	iss, _ := c.m.GetIssuer()
	return iss
}

// ExpiresAt returns the exp claim.
func (c *Claims) ExpiresAt() (time.Time, bool) {
	exp, err := c.m.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Get returns a raw claim value.
func (c *Claims) Get(name string) (any, bool) {
	v, ok := c.m[name]
	return v, ok
}

// Roles reads the named claim as a list of role names. It never fails: an
// absent or non-array claim gives an empty list and non-string entries are
// skipped.
func (c *Claims) Roles(name string) []string {
	roles := []string{}
	if c == nil || name == "" {
		return roles
	}
	raw, ok := c.m[name].([]any)
	if !ok {
		return roles
	}
	for _, v := range raw {
		if s, ok := v.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

// Decode unmarshals the claim set into ref.
func (c *Claims) Decode(ref any) error {
	b, err := json.Marshal(c.m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
