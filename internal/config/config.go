// Package config loads and validates all runtime configuration from
// the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the complete runtime configuration of the service. Every
// field maps to one environment variable.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// JWT verification. The secret is base64-encoded HMAC key
	// material; issuers is a CSV allowlist, e.g.
	// "adboard-web,adboard-reporting".
	JWTHS256Secret      string `env:"JWT_HS256_SECRET,required"`
	JWTAllowedIssuers   string `env:"JWT_ALLOWED_ISSUERS,required"`
	JWTAudience         string `env:"JWT_AUDIENCE,required"`
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`

	// Static bearer tokens for service-to-service callers.
	S2STokenReporting string `env:"S2S_TOKEN_REPORTING"`
	S2STokenBilling   string `env:"S2S_TOKEN_BILLING"`

	// Permission session cache sizing.
	PermissionsCacheSize       int `env:"PERMISSIONS_CACHE_SIZE" envDefault:"4096"`
	PermissionsCacheTTLSeconds int `env:"PERMISSIONS_CACHE_TTL_SECONDS" envDefault:"300"`

	// OpenTelemetry export.
	OTELEnabled          bool    `env:"OTEL_ENABLED" envDefault:"true"`
	OTELExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"adboard-api"`
	OTELSamplingRatio    float64 `env:"OTEL_SAMPLING_RATIO" envDefault:"0.1"`

	Port   string `env:"PORT" envDefault:"3002"`
	AppEnv string `env:"APP_ENV" envDefault:"production"`

	RateLimitPerWorkspacePerMin int `env:"RATE_LIMIT_PER_WORKSPACE_PER_MIN" envDefault:"100"`

	// Optional token guarding the Prometheus scrape endpoint. Empty
	// means /metrics is open (cluster-internal deployments).
	MetricsToken string `env:"METRICS_TOKEN"`
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate enforces the constraints env tags cannot express. It also
// fills the issuer default so constructed-in-test configs behave like
// loaded ones.
func (c *Config) Validate() error {
	for _, req := range []struct {
		value, name string
	}{
		{c.DatabaseURL, "DATABASE_URL"},
		{c.RedisURL, "REDIS_URL"},
		{c.JWTHS256Secret, "JWT_HS256_SECRET"},
		{c.JWTAudience, "JWT_AUDIENCE"},
	} {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}

	if c.JWTAllowedIssuers == "" {
		c.JWTAllowedIssuers = "adboard-web"
	}
	if len(c.GetAllowedIssuers()) == 0 {
		return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	if c.OTELSamplingRatio < 0 || c.OTELSamplingRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	for _, pos := range []struct {
		value int
		name  string
	}{
		{c.PermissionsCacheSize, "PERMISSIONS_CACHE_SIZE"},
		{c.PermissionsCacheTTLSeconds, "PERMISSIONS_CACHE_TTL_SECONDS"},
		{c.RateLimitPerWorkspacePerMin, "RATE_LIMIT_PER_WORKSPACE_PER_MIN"},
	} {
		if pos.value <= 0 {
			return fmt.Errorf("%s must be positive", pos.name)
		}
	}

	return nil
}

// TelemetryEnabled reports whether traces and OTLP metrics should be
// initialized at startup.
func (c *Config) TelemetryEnabled() bool {
	return c.OTELEnabled
}

// GetAllowedIssuers splits the issuer allowlist, dropping empty and
// whitespace-only entries. Duplicates pass through.
func (c *Config) GetAllowedIssuers() []string {
	parts := strings.Split(c.JWTAllowedIssuers, ",")
	issuers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			issuers = append(issuers, trimmed)
		}
	}
	return issuers
}
