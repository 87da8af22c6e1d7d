package auth

import (
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingKid = errors.New("kid header not found")

// TokenKeyID reads the kid from the token header without verifying the
// signature.
func TokenKeyID(token string) (string, error) {
	return tokenKeyID(token, DefaultStatusCodes())
}

func tokenKeyID(token string, codes StatusCodes) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", newAuthError(KindMalformedToken, codes.MalformedToken,
			fmt.Sprintf("unable to parse jwt: %v", err), err)
	}
	kid, ok := parsed.Header["kid"].(string)
	if !ok {
		return "", newAuthError(KindMalformedToken, codes.MalformedToken, "unable to parse jwt", errMissingKid)
	}
	return kid, nil
}

// ResolveKey finds the key in set that the token's kid names. Both failure
// modes default to status 500.
func ResolveKey(set *KeySet, token string) (*jose.JSONWebKey, error) {
	return resolveKey(set, token, DefaultStatusCodes())
}

func resolveKey(set *KeySet, token string, codes StatusCodes) (*jose.JSONWebKey, error) {
	kid, err := tokenKeyID(token, codes)
	if err != nil {
		return nil, err
	}
	return lookupKey(set, kid, codes)
}

func lookupKey(set *KeySet, kid string, codes StatusCodes) (*jose.JSONWebKey, error) {
	key, ok := set.Lookup(kid)
	if !ok {
		return nil, newAuthError(KindUnknownKey, codes.UnknownKey, "Specified key not found in set",
			fmt.Errorf("key with kid %q not found in JWKS", kid))
	}
	return key, nil
}
