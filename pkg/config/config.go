package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fedgate/fedgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Upstream membership API configuration
	Upstream UpstreamConfig

	// Authorization policy, loaded from the policy file
	Policy Policy

	// SSO userinfo endpoint configuration
	SSO SSOConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Audit trail configuration
	Audit AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RateLimitPerSecond and RateLimitBurst configure per-client rate
	// limiting on the decision API. Zero disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// AuditConfig holds the decision audit trail configuration. An empty
// LogDir disables the audit log.
type AuditConfig struct {
	LogDir   string
	Rotate   bool
	MaxSize  int64
	MaxFiles int
}

// UpstreamConfig holds membership API client configuration
type UpstreamConfig struct {
	// APIBase is the REST API root used for org/team membership checks.
	APIBase string

	// RequestTimeout bounds each upstream round trip.
	RequestTimeout time.Duration

	// MaxPages caps Link-header pagination.
	MaxPages int

	// RequestsPerSecond and Burst configure the local rate limiter in
	// front of the upstream API. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// ConcurrentChecks enables parallel membership checks across the
	// organization allow-list.
	ConcurrentChecks bool
}

// SSOConfig locates the provider's userinfo endpoint, used to backfill
// claims for requests that carry only an access token. IssuerURL
// discovers the endpoint via OIDC; UserinfoURL names it directly.
// Both empty disables the backfill.
type SSOConfig struct {
	IssuerURL   string
	UserinfoURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel
}

// LoadConfig loads configuration from environment variables and the
// policy file named by FEDGATE_POLICY_FILE.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Upstream:      loadUpstreamConfig(),
		SSO:           loadSSOConfig(),
		Observability: loadObservabilityConfig(),
		Audit:         loadAuditConfig(),
	}

	if policyFile := getEnv("FEDGATE_POLICY_FILE", ""); policyFile != "" {
		policy, err := LoadPolicyFile(policyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file %s: %w", policyFile, err)
		}
		cfg.Policy = *policy
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("FEDGATE_HOST", "0.0.0.0"),
		Port:            getEnv("FEDGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("FEDGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("FEDGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("FEDGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("FEDGATE_SHUTDOWN_TIMEOUT", 30*time.Second),

		RateLimitPerSecond: getEnvFloat("FEDGATE_API_RATE_LIMIT", 0),
		RateLimitBurst:     getEnvInt("FEDGATE_API_RATE_BURST", 0),
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		LogDir:   getEnv("FEDGATE_AUDIT_LOG_DIR", ""),
		Rotate:   getEnvBool("FEDGATE_AUDIT_ROTATE", true),
		MaxSize:  int64(getEnvInt("FEDGATE_AUDIT_MAX_SIZE", 100*1024*1024)),
		MaxFiles: getEnvInt("FEDGATE_AUDIT_MAX_FILES", 10),
	}
}

// loadUpstreamConfig loads membership API client configuration from environment
func loadUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		APIBase:           getEnv("FEDGATE_UPSTREAM_API", "https://api.github.com"),
		RequestTimeout:    getEnvDuration("FEDGATE_UPSTREAM_TIMEOUT", 10*time.Second),
		MaxPages:          getEnvInt("FEDGATE_UPSTREAM_MAX_PAGES", 64),
		RequestsPerSecond: getEnvFloat("FEDGATE_UPSTREAM_RATE_LIMIT", 0),
		Burst:             getEnvInt("FEDGATE_UPSTREAM_RATE_BURST", 0),
		ConcurrentChecks:  getEnvBool("FEDGATE_CONCURRENT_MEMBERSHIP_CHECKS", false),
	}
}

// loadSSOConfig loads userinfo endpoint configuration from environment
func loadSSOConfig() SSOConfig {
	return SSOConfig{
		IssuerURL:   getEnv("FEDGATE_ISSUER_URL", ""),
		UserinfoURL: getEnv("FEDGATE_USERINFO_URL", ""),
	}
}

// loadObservabilityConfig loads observability settings from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel: observability.ParseLogLevel(getEnv("FEDGATE_LOG_LEVEL", "info")),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Upstream.MaxPages <= 0 {
		return fmt.Errorf("upstream max pages must be positive")
	}
	if len(c.Policy.AllowedOrganizations) > 0 && c.Upstream.APIBase == "" {
		return fmt.Errorf("upstream API base is required when allowed_organizations is set")
	}
	return c.Policy.Validate()
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
