// Package authtest provides signing keys, JWKS servers and fake key set
// providers for tests of code built on package auth.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/carvis-cloud/lambda-auth/auth"
)

// Key is an RSA signing key with its kid.
type Key struct {
	ID      string
	Private *rsa.PrivateKey
}

// NewKey generates a 2048-bit RSA key.
func NewKey(t testing.TB, kid string) *Key {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &Key{ID: kid, Private: priv}
}

// JWK returns the public half of the key as an RS256 signing JWK.
func (k *Key) JWK() jose.JSONWebKey {
	return jose.JSONWebKey{
		Key:       &k.Private.PublicKey,
		KeyID:     k.ID,
		Algorithm: "RS256",
		Use:       "sig",
	}
}

// Sign signs claims with RS256 and the key's kid.
func (k *Key) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = k.ID
	signed, err := token.SignedString(k.Private)
	require.NoError(t, err)
	return signed
}

// Claims returns a valid claim set for issuer and subject, expiring in one
// hour, with roles stored under auth.DefaultRolesClaim.
func Claims(issuer, subject string, roles ...string) jwt.MapClaims {
	now := time.Now()
	c := jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if roles != nil {
		list := make([]any, 0, len(roles))
		for _, r := range roles {
			list = append(list, r)
		}
		c[auth.DefaultRolesClaim] = list
	}
	return c
}

// JWKS encodes the public halves of keys as a JWKS document.
func JWKS(t testing.TB, keys ...*Key) []byte {
	t.Helper()
	set := jose.JSONWebKeySet{}
	for _, k := range keys {
		set.Keys = append(set.Keys, k.JWK())
	}
	b, err := json.Marshal(set)
	require.NoError(t, err)
	return b
}

// KeySet builds an in-memory auth.KeySet for keys.
func KeySet(keys ...*Key) *auth.KeySet {
	jwks := make([]jose.JSONWebKey, 0, len(keys))
	for _, k := range keys {
		jwks = append(jwks, k.JWK())
	}
	return auth.NewKeySet(jwks...)
}

// Server serves a JWKS document and counts requests. The document can be
// swapped while the server runs to simulate key rotation.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	body   []byte
	status int
	hits   atomic.Int64
}

// NewServer starts a JWKS server for keys. It is closed on test cleanup.
func NewServer(t testing.TB, keys ...*Key) *Server {
	t.Helper()
	s := &Server{body: JWKS(t, keys...), status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		body, status := s.body, s.status
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Authority returns the server URL as an authority with a trailing slash.
func (s *Server) Authority() string { return s.URL + "/" }

// SetKeys replaces the served document.
func (s *Server) SetKeys(t testing.TB, keys ...*Key) {
	body := JWKS(t, keys...)
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
}

// SetResponse replaces the served status and raw body.
func (s *Server) SetResponse(status int, body []byte) {
	s.mu.Lock()
	s.status, s.body = status, body
	s.mu.Unlock()
}

// Hits returns the number of requests served.
func (s *Server) Hits() int64 { return s.hits.Load() }

// StaticProvider is an auth.KeySetProvider returning a fixed set or error
// and recording the URIs it was asked for.
type StaticProvider struct {
	Set *auth.KeySet
	Err error

	mu   sync.Mutex
	uris []string
}

// KeySet implements auth.KeySetProvider.
func (p *StaticProvider) KeySet(_ context.Context, uri string) (*auth.KeySet, error) {
	p.mu.Lock()
	p.uris = append(p.uris, uri)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Set, nil
}

// Calls returns the URIs requested so far.
func (p *StaticProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.uris...)
}
