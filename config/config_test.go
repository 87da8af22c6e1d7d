package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuthority = "https://carvis.eu.auth0.com/"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"AUTHORITY": testAuthority,
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
				assert.Equal(t, testAuthority, cfg.Auth.Authority)
				assert.Equal(t, "https://carvis.cloud/roles", cfg.Auth.RolesClaim)
				assert.Equal(t, []string{"RS256"}, cfg.Auth.AllowedAlgs)
				assert.Zero(t, cfg.Auth.Leeway)
				assert.Equal(t, 500, cfg.Auth.MalformedTokenStatus)
				assert.Equal(t, 500, cfg.Auth.UnknownKeyStatus)
				assert.Equal(t, 10*time.Second, cfg.JWKS.FetchTimeout)
				assert.True(t, cfg.JWKS.CacheEnabled)
				assert.Equal(t, time.Hour, cfg.JWKS.CacheTTL)
				assert.Equal(t, 30*time.Second, cfg.JWKS.MinRefreshInterval)
				assert.False(t, cfg.Redis.Enabled())
				assert.Equal(t, "info", cfg.Observability.LogLevel)
				assert.Equal(t, "json", cfg.Observability.LogFormat)
			},
		},
		{
			name: "missing authority",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: true,
		},
		{
			name: "authority without trailing slash",
			envVars: map[string]string{
				"AUTHORITY": "https://carvis.eu.auth0.com",
			},
			wantErr: true,
		},
		{
			name: "plain http authority in production",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"AUTHORITY":   "http://issuer.internal/",
			},
			wantErr: true,
		},
		{
			name: "plain http authority in development",
			envVars: map[string]string{
				"AUTHORITY": "http://localhost:9999/",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://localhost:9999/", cfg.Auth.Authority)
			},
		},
		{
			name: "auth overrides",
			envVars: map[string]string{
				"AUTHORITY":                   testAuthority,
				"AUTH_ROLES_CLAIM":            "groups",
				"AUTH_ALLOWED_ALGS":           "RS256, ES256,",
				"AUTH_LEEWAY":                 "30s",
				"AUTH_MALFORMED_TOKEN_STATUS": "401",
				"AUTH_UNKNOWN_KEY_STATUS":     "401",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "groups", cfg.Auth.RolesClaim)
				assert.Equal(t, []string{"RS256", "ES256"}, cfg.Auth.AllowedAlgs)
				assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
				assert.Equal(t, 401, cfg.Auth.MalformedTokenStatus)
				assert.Equal(t, 401, cfg.Auth.UnknownKeyStatus)
			},
		},
		{
			name: "alg none is rejected",
			envVars: map[string]string{
				"AUTHORITY":         testAuthority,
				"AUTH_ALLOWED_ALGS": "RS256,none",
			},
			wantErr: true,
		},
		{
			name: "status code outside error range",
			envVars: map[string]string{
				"AUTHORITY":               testAuthority,
				"AUTH_UNKNOWN_KEY_STATUS": "200",
			},
			wantErr: true,
		},
		{
			name: "jwks and redis settings",
			envVars: map[string]string{
				"AUTHORITY":                 testAuthority,
				"JWKS_FETCH_TIMEOUT":        "3s",
				"JWKS_CACHE_ENABLED":        "false",
				"JWKS_CACHE_TTL":            "15m",
				"JWKS_MIN_REFRESH_INTERVAL": "1m",
				"REDIS_ADDR":                "redis:6379",
				"REDIS_PASSWORD":            "secret",
				"REDIS_DB":                  "2",
				"REDIS_KEY_PREFIX":          "svc:jwks:",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3*time.Second, cfg.JWKS.FetchTimeout)
				assert.False(t, cfg.JWKS.CacheEnabled)
				assert.Equal(t, 15*time.Minute, cfg.JWKS.CacheTTL)
				assert.Equal(t, time.Minute, cfg.JWKS.MinRefreshInterval)
				assert.True(t, cfg.Redis.Enabled())
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
				assert.Equal(t, "secret", cfg.Redis.Password)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, "svc:jwks:", cfg.Redis.KeyPrefix)
			},
		},
		{
			name: "zero min refresh interval disables the limit",
			envVars: map[string]string{
				"AUTHORITY":                 testAuthority,
				"JWKS_MIN_REFRESH_INTERVAL": "0",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Duration(0), cfg.JWKS.MinRefreshInterval)
			},
		},
		{
			name: "negative min refresh interval",
			envVars: map[string]string{
				"AUTHORITY":                 testAuthority,
				"JWKS_MIN_REFRESH_INTERVAL": "-1s",
			},
			wantErr: true,
		},
		{
			name: "custom timeouts",
			envVars: map[string]string{
				"AUTHORITY":            testAuthority,
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"AUTHORITY":  testAuthority,
				"LOG_LEVEL":  "debug",
				"LOG_FORMAT": "text",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "text", cfg.Observability.LogFormat)
			},
		},
		{
			name: "unknown log format",
			envVars: map[string]string{
				"AUTHORITY":  testAuthority,
				"LOG_FORMAT": "xml",
			},
			wantErr: true,
		},
		{
			name: "TLS configuration overrides",
			envVars: map[string]string{
				"AUTHORITY":     testAuthority,
				"TLS_ENABLED":   "true",
				"TLS_CERT_FILE": "/etc/ssl/certs/server.crt",
				"TLS_KEY_FILE":  "/etc/ssl/private/server.key",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "/etc/ssl/certs/server.crt", cfg.Server.TLS.CertFile)
				assert.Equal(t, "/etc/ssl/private/server.key", cfg.Server.TLS.KeyFile)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"AUTHORITY":   testAuthority,
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVER_PORT env var when PORT not set",
			envVars: map[string]string{
				"AUTHORITY":   testAuthority,
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "CORS origins",
			envVars: map[string]string{
				"AUTHORITY":            testAuthority,
				"CORS_ALLOWED_ORIGINS": "https://app.carvis.cloud,https://admin.carvis.cloud",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://app.carvis.cloud", "https://admin.carvis.cloud"}, cfg.Server.CORSAllowedOrigins)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			// Create config
			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	cfg := &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: AuthConfig{
			Authority:            testAuthority,
			RolesClaim:           "https://carvis.cloud/roles",
			AllowedAlgs:          []string{"RS256"},
			MalformedTokenStatus: 500,
			UnknownKeyStatus:     500,
		},
		JWKS: JWKSConfig{
			FetchTimeout: time.Second,
			CacheTTL:     time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid development config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing authority",
			mutate:  func(c *Config) { c.Auth.Authority = "" },
			wantErr: true,
			errMsg:  "Authority is required",
		},
		{
			name:    "missing roles claim",
			mutate:  func(c *Config) { c.Auth.RolesClaim = "" },
			wantErr: true,
			errMsg:  "RolesClaim is required",
		},
		{
			name:    "no algorithms",
			mutate:  func(c *Config) { c.Auth.AllowedAlgs = nil },
			wantErr: true,
			errMsg:  "AllowedAlgs",
		},
		{
			name:    "negative leeway",
			mutate:  func(c *Config) { c.Auth.Leeway = -time.Second },
			wantErr: true,
			errMsg:  "Leeway",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.JWKS.FetchTimeout = 0 },
			wantErr: true,
			errMsg:  "FetchTimeout",
		},
		{
			name: "TLS without files",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
			},
			wantErr: true,
			errMsg:  "TLS cert and key files are required",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "verbose" },
			wantErr: true,
			errMsg:  "LogLevel must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsDevelopment())
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "TEST_BOOL", "true", false, true},
		{"false", "TEST_BOOL", "false", true, false},
		{"empty value", "TEST_BOOL", "", true, true},
		{"invalid bool", "TEST_BOOL", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsBool(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "RS256", []string{"RS256"}},
		{"trims and drops empty", " RS256 ,, ES256 ", []string{"RS256", "ES256"}},
		{"only separators", ",,", []string{"default"}},
		{"empty value", "", []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_SLICE", tt.value)
			}
			got := getEnvAsSlice("TEST_SLICE", []string{"default"})
			assert.Equal(t, tt.want, got)
		})
	}
}
