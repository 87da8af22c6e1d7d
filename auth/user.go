package auth

import (
	"fmt"
	"net/http"
	"slices"
)

// DefaultRolesClaim is the namespaced claim holding the user's roles.
const DefaultRolesClaim = "https://carvis.cloud/roles"

// User is the authenticated identity derived from a verified token.
type User struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// ToUser maps verified claims to a User. Role extraction is best-effort;
// a missing subject is a contract violation and is reported, not defaulted.
func ToUser(claims *Claims, rolesClaim string) (*User, error) {
	if claims == nil {
		return nil, newAuthError(KindIdentity, http.StatusInternalServerError, "unable to map identity: no claims", nil)
	}
	sub, err := claims.Subject()
	if err != nil {
		return nil, newAuthError(KindIdentity, http.StatusInternalServerError,
			fmt.Sprintf("unable to map identity: %v", err), err)
	}
	return &User{
		Username: sub,
		Roles:    claims.Roles(rolesClaim),
	}, nil
}

// HasRole checks if the user has a specific role
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// HasAnyRole checks if the user has any of the specified roles
func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}
