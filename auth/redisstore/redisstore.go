// Package redisstore shares fetched key sets between processes through Redis,
// so a fleet of short-lived function instances fetches the JWKS document
// once per TTL instead of once per instance.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carvis-cloud/lambda-auth/auth"
)

const (
	// DefaultKeyPrefix namespaces every key written by the store.
	DefaultKeyPrefix = "lambda-auth:jwks:"

	// DefaultTTL is how long a key set is kept in Redis.
	DefaultTTL = 1 * time.Hour
)

// Config contains configuration options for the Redis store
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// Next is the provider consulted on a miss, usually an auth.HTTPFetcher.
	Next auth.KeySetProvider

	// KeyPrefix is the prefix for all Redis keys
	// Default: "lambda-auth:jwks:"
	KeyPrefix string

	// TTL is the Redis expiry of a stored key set
	// Default: 1h
	TTL time.Duration

	Logger *zap.Logger
}

// Provider is an auth.KeySetProvider backed by Redis. Redis failures are
// logged and the origin is used instead, so Redis is never a hard dependency
// of authentication.
type Provider struct {
	client    *redis.Client
	next      auth.KeySetProvider
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// storedSet is the value stored under each key
type storedSet struct {
	JWKS      json.RawMessage `json:"jwks"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// New creates a Redis-backed provider.
func New(config Config) (*Provider, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.Next == nil {
		return nil, fmt.Errorf("upstream key set provider is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return &Provider{
		client:    config.Client,
		next:      config.Next,
		keyPrefix: config.KeyPrefix,
		ttl:       config.TTL,
		logger:    config.Logger,
	}, nil
}

// KeySet implements auth.KeySetProvider. A stored copy is served when
// present; otherwise the upstream is fetched and the result stored.
func (p *Provider) KeySet(ctx context.Context, uri string) (*auth.KeySet, error) {
	set, err := p.get(ctx, uri)
	if err != nil {
		p.logger.Warn("redis key set read failed, using origin",
			zap.String("jwks_uri", uri),
			zap.Error(err))
	}
	if set != nil {
		return set, nil
	}
	return p.fetchAndStore(ctx, uri)
}

// Refresh implements auth.Refresher. It skips the stored copy and replaces
// it with a fresh fetch.
func (p *Provider) Refresh(ctx context.Context, uri string) (*auth.KeySet, error) {
	return p.fetchAndStore(ctx, uri)
}

// Delete removes the stored copy for uri.
func (p *Provider) Delete(ctx context.Context, uri string) error {
	if err := p.client.Del(ctx, p.buildKey(uri)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", p.buildKey(uri), err)
	}
	return nil
}

// Ping checks the Redis connection
func (p *Provider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) get(ctx context.Context, uri string) (*auth.KeySet, error) {
	redisKey := p.buildKey(uri)

	val, err := p.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", redisKey, err)
	}

	var item storedSet
	if err := json.Unmarshal(val, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored key set: %w", err)
	}
	set, err := auth.ParseKeySet(item.JWKS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored key set: %w", err)
	}
	return set.WithOrigin(item.Source, item.FetchedAt), nil
}

func (p *Provider) fetchAndStore(ctx context.Context, uri string) (*auth.KeySet, error) {
	set, err := p.next.KeySet(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := p.set(ctx, uri, set); err != nil {
		p.logger.Warn("redis key set write failed",
			zap.String("jwks_uri", uri),
			zap.Error(err))
	}
	return set, nil
}

func (p *Provider) set(ctx context.Context, uri string, set *auth.KeySet) error {
	jwks, err := set.MarshalJSON()
	if err != nil {
		return err
	}

	fetchedAt := set.FetchedAt()
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	item := storedSet{
		JWKS:      jwks,
		Source:    uri,
		FetchedAt: fetchedAt,
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal key set: %w", err)
	}

	redisKey := p.buildKey(uri)
	if err := p.client.Set(ctx, redisKey, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", redisKey, err)
	}
	return nil
}

func (p *Provider) buildKey(uri string) string {
	return p.keyPrefix + uri
}
