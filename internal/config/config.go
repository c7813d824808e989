package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Tenants       TenantStoreConfig
	Database      DatabaseConfig
	Identity      IdentityConfig
	Authz         AuthzConfig
	Upstream      UpstreamConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
	Queue         QueueConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TenantStoreConfig selects and parameterizes the tenant config store
type TenantStoreConfig struct {
	// Kind is "file" (one JSON file per tenant under Dir) or "postgres"
	Kind string
	// Dir is the tenant config directory for the file store
	Dir string
	// DefaultTenant is used when a request carries no tenant identification
	DefaultTenant string
	// Watch enables cache invalidation on config file changes
	Watch bool
}

// DatabaseConfig holds database configuration (postgres tenant store only)
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// IdentityConfig holds identity provider settings
type IdentityConfig struct {
	CookieName string
	SigningKey string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

// AuthzConfig holds authorization gate settings
type AuthzConfig struct {
	// OnMembershipError is "allow" (fail open, default) or "deny"
	OnMembershipError string
}

// UpstreamConfig holds backend table service call settings
type UpstreamConfig struct {
	Timeout  time.Duration
	PageSize int
	MaxPages int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window time.Duration
	Cap    int
	Sweep  time.Duration
}

// QueueConfig holds the bulk-operation queue configuration
type QueueConfig struct {
	Concurrency int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Tenants: TenantStoreConfig{
			Kind:          getEnv("TENANT_STORE", "file"),
			Dir:           getEnv("TENANT_CONFIG_DIR", "./tenants"),
			DefaultTenant: getEnv("DEFAULT_TENANT", "default"),
			Watch:         parseBool("TENANT_CONFIG_WATCH", true),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "fleetdesk"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "fleetdesk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Identity: IdentityConfig{
			CookieName: getEnv("IDENTITY_COOKIE_NAME", "__session"),
			SigningKey: getEnv("IDENTITY_SIGNING_KEY", ""),
			BaseURL:    getEnv("IDENTITY_API_URL", ""),
			APIKey:     getEnv("IDENTITY_API_KEY", ""),
			Timeout:    parseDuration("IDENTITY_TIMEOUT", "10s"),
		},
		Authz: AuthzConfig{
			OnMembershipError: getEnv("AUTHZ_ON_MEMBERSHIP_ERROR", "allow"),
		},
		Upstream: UpstreamConfig{
			Timeout:  parseDuration("UPSTREAM_TIMEOUT", "15s"),
			PageSize: parseInt("UPSTREAM_PAGE_SIZE", 100),
			MaxPages: parseInt("UPSTREAM_MAX_PAGES", 50),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "fleetdesk"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			Window: parseDuration("RATELIMIT_WINDOW", "60s"),
			Cap:    parseInt("RATELIMIT_CAP", 300),
			Sweep:  parseDuration("RATELIMIT_SWEEP", "5m"),
		},
		Queue: QueueConfig{
			Concurrency: parseInt("QUEUE_CONCURRENCY", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Tenants.Kind != "file" && c.Tenants.Kind != "postgres" {
		return fmt.Errorf("TENANT_STORE must be \"file\" or \"postgres\", got %q", c.Tenants.Kind)
	}
	if c.Tenants.Kind == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when TENANT_STORE=postgres")
	}
	if c.Authz.OnMembershipError != "allow" && c.Authz.OnMembershipError != "deny" {
		return fmt.Errorf("AUTHZ_ON_MEMBERSHIP_ERROR must be \"allow\" or \"deny\", got %q", c.Authz.OnMembershipError)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
