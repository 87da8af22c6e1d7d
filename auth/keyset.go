package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// KeySet is an immutable, parsed JSON Web Key Set. Values are never mutated
// after construction, so a *KeySet can be shared freely between goroutines.
type KeySet struct {
	keys      jose.JSONWebKeySet
	source    string
	fetchedAt time.Time
}

// ParseKeySet parses a JWKS document. The document must be a JSON object
// carrying a "keys" array.
func ParseKeySet(data []byte) (*KeySet, error) {
	var envelope struct {
		Keys json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Keys) == 0 || bytes.Equal(envelope.Keys, []byte("null")) {
		return nil, errors.New("missing \"keys\" array")
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &KeySet{keys: set}, nil
}

// NewKeySet builds a KeySet from already parsed keys.
func NewKeySet(keys ...jose.JSONWebKey) *KeySet {
	return &KeySet{keys: jose.JSONWebKeySet{Keys: append([]jose.JSONWebKey(nil), keys...)}}
}

// WithOrigin returns a copy of the set annotated with where and when it was
// fetched.
func (s *KeySet) WithOrigin(source string, fetchedAt time.Time) *KeySet {
	return &KeySet{keys: s.keys, source: source, fetchedAt: fetchedAt}
}

// Lookup returns the first public signing key whose kid matches exactly.
// Keys declared for encryption and non-public (symmetric or private) keys
// are never returned.
func (s *KeySet) Lookup(kid string) (*jose.JSONWebKey, bool) {
	if s == nil {
		return nil, false
	}
	for _, k := range s.keys.Key(kid) {
		if k.Use == "enc" || !k.IsPublic() {
			continue
		}
		key := k
		return &key, true
	}
	return nil, false
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys.Keys)
}

// KeyIDs lists the kids in document order.
func (s *KeySet) KeyIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys.Keys))
	for _, k := range s.keys.Keys {
		ids = append(ids, k.KeyID)
	}
	return ids
}

// Source is the URI the set was fetched from, if known.
func (s *KeySet) Source() string { return s.source }

// FetchedAt is when the set was retrieved from its origin.
func (s *KeySet) FetchedAt() time.Time { return s.fetchedAt }

// MarshalJSON renders the set back into a JWKS document.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(s.keys)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key set: %w", err)
	}
	return b, nil
}
