package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carvis-cloud/lambda-auth/auth"
	"github.com/carvis-cloud/lambda-auth/auth/redisstore"
	"github.com/carvis-cloud/lambda-auth/config"
	"github.com/carvis-cloud/lambda-auth/handlers"
	"github.com/carvis-cloud/lambda-auth/middleware"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Key set providers, outermost first. KeyStore is nil when Redis is
	// not configured, Cache is nil when in-process caching is disabled.
	Cache    *auth.CachingProvider
	KeyStore *redisstore.Provider
	Fetcher  *auth.HTTPFetcher

	// Auth
	Authenticator  *auth.Authenticator
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	HealthHandler *handlers.HealthHandler
	UserHandler   *handlers.UserHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	provider, err := deps.initKeySetProviders(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key set providers: %w", err)
	}

	if err := deps.initAuth(cfg, provider); err != nil {
		return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.String("authority", cfg.Auth.Authority),
		zap.String("jwks_uri", deps.Authenticator.JWKSURI()))
	return deps, nil
}

// initKeySetProviders builds the fetch chain: cache -> redis -> origin.
func (d *Dependencies) initKeySetProviders(ctx context.Context, cfg *config.Config) (auth.KeySetProvider, error) {
	d.Fetcher = auth.NewHTTPFetcher(&http.Client{Timeout: cfg.JWKS.FetchTimeout})

	var provider auth.KeySetProvider = d.Fetcher

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		store, err := redisstore.New(redisstore.Config{
			Client:    client,
			Next:      d.Fetcher,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.JWKS.CacheTTL,
			Logger:    d.Logger,
		})
		if err != nil {
			_ = client.Close()
			return nil, err
		}

		// Redis is optional at runtime; an unreachable server only degrades caching
		if err := store.Ping(ctx); err != nil {
			d.Logger.Warn("redis not reachable, key sets will be fetched from origin",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
		} else {
			d.Logger.Info("redis key set store connected", zap.String("addr", cfg.Redis.Addr))
		}

		d.KeyStore = store
		provider = store
	}

	if cfg.JWKS.CacheEnabled {
		// Zero in config means no limit, which CachingProvider spells as negative.
		minRefresh := cfg.JWKS.MinRefreshInterval
		if minRefresh == 0 {
			minRefresh = -1
		}
		d.Cache = auth.NewCachingProvider(provider, auth.CacheConfig{
			TTL:                cfg.JWKS.CacheTTL,
			MinRefreshInterval: minRefresh,
			Logger:             d.Logger,
		})
		provider = d.Cache
	}

	return provider, nil
}

func (d *Dependencies) initAuth(cfg *config.Config, provider auth.KeySetProvider) error {
	authenticator, err := auth.New(cfg.Auth.Authority,
		auth.WithKeySetProvider(provider),
		auth.WithRolesClaim(cfg.Auth.RolesClaim),
		auth.WithAllowedAlgs(cfg.Auth.AllowedAlgs...),
		auth.WithLeeway(cfg.Auth.Leeway),
		auth.WithStatusCodes(auth.StatusCodes{
			MalformedToken: cfg.Auth.MalformedTokenStatus,
			UnknownKey:     cfg.Auth.UnknownKeyStatus,
		}),
		auth.WithLogger(d.Logger),
	)
	if err != nil {
		return err
	}

	d.Authenticator = authenticator
	d.AuthMiddleware = middleware.NewAuthMiddleware(authenticator, d.Logger)
	return nil
}

func (d *Dependencies) initHandlers() {
	var cache handlers.Pinger
	if d.KeyStore != nil {
		cache = d.KeyStore
	}
	d.HealthHandler = handlers.NewHealthHandler(d.Authenticator, cache, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.KeyStore != nil {
		if err := d.KeyStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
		d.KeyStore = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
