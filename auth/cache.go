package auth

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL is how long a fetched key set is served before refetching.
	DefaultCacheTTL = 1 * time.Hour

	// DefaultMinRefreshInterval limits how often an unknown kid may force a refetch.
	DefaultMinRefreshInterval = 30 * time.Second
)

// CacheConfig holds configuration for CachingProvider
type CacheConfig struct {
	TTL                time.Duration
	// MinRefreshInterval defaults to DefaultMinRefreshInterval when zero.
	// A negative value removes the limit.
	MinRefreshInterval time.Duration
	Logger             *zap.Logger
}

type cacheEntry struct {
	set       *KeySet
	expiresAt time.Time
	loadedAt  time.Time
}

// CachingProvider decorates a KeySetProvider with a per-URI TTL cache.
// Entries are replaced whole under a short write lock, so readers never see
// a partially updated set and callers holding a valid entry never wait on a
// refresh. Concurrent loads of the same URI share one upstream fetch.
type CachingProvider struct {
	next               KeySetProvider
	ttl                time.Duration
	minRefreshInterval time.Duration
	logger             *zap.Logger
	now                func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

// NewCachingProvider creates a cache in front of next.
func NewCachingProvider(next KeySetProvider, cfg CacheConfig) *CachingProvider {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.MinRefreshInterval < 0 {
		cfg.MinRefreshInterval = 0
	} else if cfg.MinRefreshInterval == 0 {
		cfg.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CachingProvider{
		next:               next,
		ttl:                cfg.TTL,
		minRefreshInterval: cfg.MinRefreshInterval,
		logger:             cfg.Logger,
		now:                time.Now,
		entries:            make(map[string]*cacheEntry),
	}
}

// KeySet implements KeySetProvider. A valid cached copy is returned without
// touching the upstream provider.
func (c *CachingProvider) KeySet(ctx context.Context, uri string) (*KeySet, error) {
	if entry := c.entry(uri); entry != nil && c.now().Before(entry.expiresAt) {
		return entry.set, nil
	}
	return c.load(ctx, uri, false)
}

// Refresh implements Refresher. If the cached copy was loaded within the
// minimum refresh interval it is returned as is, so a stream of tokens with
// random kids cannot hammer the JWKS endpoint.
func (c *CachingProvider) Refresh(ctx context.Context, uri string) (*KeySet, error) {
	if entry := c.entry(uri); entry != nil && c.now().Sub(entry.loadedAt) < c.minRefreshInterval {
		c.logger.Debug("key set refresh suppressed", zap.String("jwks_uri", uri))
		return entry.set, nil
	}
	return c.load(ctx, uri, true)
}

// Invalidate drops the cached copy for uri, or every copy when uri is "".
func (c *CachingProvider) Invalidate(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if uri == "" {
		c.entries = make(map[string]*cacheEntry)
		return
	}
	delete(c.entries, uri)
}

// GetCacheStats returns cache statistics
func (c *CachingProvider) GetCacheStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := 0
	for _, e := range c.entries {
		keys += e.set.Len()
	}
	return map[string]interface{}{
		"cached_sets":     len(c.entries),
		"cached_keys":     keys,
		"ttl_seconds":     c.ttl.Seconds(),
		"min_refresh_sec": c.minRefreshInterval.Seconds(),
	}
}

func (c *CachingProvider) entry(uri string) *cacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[uri]
}

func (c *CachingProvider) load(ctx context.Context, uri string, force bool) (*KeySet, error) {
	flightKey := "load|" + uri
	if force {
		flightKey = "refresh|" + uri
	}
	// The flight is shared, so one caller giving up must not fail the rest.
	// The upstream stays bounded by its own client timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		// A forced refresh goes through the upstream Refresher when there is
		// one, so a shared cache below is bypassed too.
		var (
			set *KeySet
			err error
		)
		if r, ok := c.next.(Refresher); ok && force {
			set, err = r.Refresh(flightCtx, uri)
		} else {
			set, err = c.next.KeySet(flightCtx, uri)
		}
		if err != nil {
			return nil, err
		}

		now := c.now()
		c.mu.Lock()
		c.entries[uri] = &cacheEntry{set: set, expiresAt: now.Add(c.ttl), loadedAt: now}
		c.mu.Unlock()

		c.logger.Debug("key set loaded",
			zap.String("jwks_uri", uri),
			zap.Int("keys", set.Len()))
		return set, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("key set load failed",
				zap.String("jwks_uri", uri),
				zap.Bool("shared", res.Shared),
				zap.Error(res.Err))
			return nil, res.Err
		}
		return res.Val.(*KeySet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
