package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// KeySetProvider supplies the key set published at a JWKS URI. The
// Authenticator depends only on this interface so fetching, caching and
// test fakes can be swapped freely.
type KeySetProvider interface {
	KeySet(ctx context.Context, uri string) (*KeySet, error)
}

// Refresher is implemented by providers that hold a cached copy and can be
// asked to replace it, e.g. when a token names a kid the copy does not know.
type Refresher interface {
	Refresh(ctx context.Context, uri string) (*KeySet, error)
}

// KeySetProviderFunc adapts a function to KeySetProvider.
type KeySetProviderFunc func(ctx context.Context, uri string) (*KeySet, error)

// KeySet implements KeySetProvider.
func (f KeySetProviderFunc) KeySet(ctx context.Context, uri string) (*KeySet, error) {
	return f(ctx, uri)
}

const (
	// DefaultFetchTimeout bounds a single JWKS request.
	DefaultFetchTimeout = 10 * time.Second

	maxKeySetBytes = 1 << 20
)

// HTTPFetcher retrieves key sets over HTTP on every call. It holds no state
// besides its client and is safe for concurrent use.
type HTTPFetcher struct {
	client *http.Client
	now    func() time.Time
}

// NewHTTPFetcher creates a fetcher. A nil client gets a dedicated client
// with DefaultFetchTimeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &HTTPFetcher{client: client, now: time.Now}
}

// FetchJWKS performs a single fetch with a default fetcher.
func FetchJWKS(ctx context.Context, uri string) (*KeySet, error) {
	return NewHTTPFetcher(nil).KeySet(ctx, uri)
}

// KeySet implements KeySetProvider.
func (f *HTTPFetcher) KeySet(ctx context.Context, uri string) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
			fmt.Sprintf("unable to send http request: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
			fmt.Sprintf("unable to send http request: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		return nil, newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
			fmt.Sprintf("unable to parse response: %v", err), err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
			fmt.Sprintf("unable to parse response: %v", err), err)
	}

	set, err := ParseKeySet(body)
	if err != nil {
		return nil, newAuthError(KindKeySetUnavailable, http.StatusInternalServerError,
			fmt.Sprintf("unable to parse response: %v", err), err)
	}
	return set.WithOrigin(uri, f.now()), nil
}
