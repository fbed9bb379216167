package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:                 "postgres://localhost/adboard",
		RedisURL:                    "redis://localhost:6379",
		JWTHS256Secret:              "c2VjcmV0",
		JWTAllowedIssuers:           "adboard-web",
		JWTAudience:                 "adboard-api",
		JWTClockSkewSeconds:         60,
		OTELSamplingRatio:           0.1,
		PermissionsCacheSize:        4096,
		PermissionsCacheTTLSeconds:  300,
		RateLimitPerWorkspacePerMin: 100,
	}
}

func TestGetAllowedIssuers(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []string
	}{
		{"single", "adboard-web", []string{"adboard-web"}},
		{"multiple", "adboard-web,adboard-admin,adboard-reporting",
			[]string{"adboard-web", "adboard-admin", "adboard-reporting"}},
		{"whitespace trimmed", "  adboard-web  , adboard-admin ",
			[]string{"adboard-web", "adboard-admin"}},
		{"empty entries dropped", "adboard-web,,adboard-admin,  ,",
			[]string{"adboard-web", "adboard-admin"}},
		{"leading comma", ",adboard-web", []string{"adboard-web"}},
		{"empty string", "", []string{}},
		{"only separators", "   ,  ,   ", []string{}},
		// Duplicates pass through; the key resolver dedupes.
		{"duplicates kept", "adboard-web,adboard-admin,adboard-web",
			[]string{"adboard-web", "adboard-admin", "adboard-web"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{JWTAllowedIssuers: tt.csv}
			assert.Equal(t, tt.want, cfg.GetAllowedIssuers())
		})
	}
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing redis url", func(c *Config) { c.RedisURL = "" }, "REDIS_URL"},
		{"missing jwt secret", func(c *Config) { c.JWTHS256Secret = "" }, "JWT_HS256_SECRET"},
		{"missing audience", func(c *Config) { c.JWTAudience = "" }, "JWT_AUDIENCE"},
		{"sampling ratio above one", func(c *Config) { c.OTELSamplingRatio = 1.5 }, "OTEL_SAMPLING_RATIO"},
		{"negative clock skew", func(c *Config) { c.JWTClockSkewSeconds = -1 }, "JWT_CLOCK_SKEW_SECONDS"},
		{"zero cache size", func(c *Config) { c.PermissionsCacheSize = 0 }, "PERMISSIONS_CACHE_SIZE"},
		{"negative cache ttl", func(c *Config) { c.PermissionsCacheTTLSeconds = -1 }, "PERMISSIONS_CACHE_TTL_SECONDS"},
		{"zero rate limit", func(c *Config) { c.RateLimitPerWorkspacePerMin = 0 }, "RATE_LIMIT_PER_WORKSPACE_PER_MIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestValidate_DefaultsIssuerWhenEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.JWTAllowedIssuers = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"adboard-web"}, cfg.GetAllowedIssuers())
}

func TestValidate_RejectsSeparatorOnlyIssuers(t *testing.T) {
	cfg := validConfig()
	cfg.JWTAllowedIssuers = " , , "

	assert.ErrorContains(t, cfg.Validate(), "JWT_ALLOWED_ISSUERS")
}

func TestTelemetryEnabled(t *testing.T) {
	cfg := validConfig()

	cfg.OTELEnabled = true
	assert.True(t, cfg.TelemetryEnabled())

	cfg.OTELEnabled = false
	assert.False(t, cfg.TelemetryEnabled())
}
