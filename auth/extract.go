package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthorizationHeader is the only request header the package reads.
const AuthorizationHeader = "Authorization"

const bearerPrefix = "bearer "

var errNonVisibleHeader = errors.New("failed to convert header to a str")

// ExtractToken returns the credential carried in the Authorization header.
// A case-insensitive "Bearer " scheme is stripped; any other value is
// returned unchanged for callers that omit the scheme.
func ExtractToken(h http.Header) (string, error) {
	// Exact key lookup; net/http already canonicalizes inbound names.
	values, ok := h[AuthorizationHeader]
	if !ok || len(values) == 0 {
		return "", newAuthError(KindMissingCredential, http.StatusUnauthorized,
			"no 'Authorization' header present", nil)
	}

	value := values[0]
	if !isVisibleASCII(value) {
		return "", newAuthError(KindMissingCredential, http.StatusUnauthorized,
			fmt.Sprintf("unable to extract string from 'Authorization' header: %v", errNonVisibleHeader), errNonVisibleHeader)
	}

	if len(value) >= len(bearerPrefix) && strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return value[len(bearerPrefix):], nil
	}
	return value, nil
}

// isVisibleASCII reports whether s only holds visible ASCII, space or tab.
func isVisibleASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\t' {
			continue
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
