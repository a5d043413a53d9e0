package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	API         APIConfig         `yaml:"api"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// IsProduction reports whether the server runs in production
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// EnforcementMode governs whether the tenant status guard blocks or warns
type EnforcementMode string

const (
	// EnforcementDisabled - the status guard is a no-op
	EnforcementDisabled EnforcementMode = "disabled"
	// EnforcementSoft - inactive tenants get a warning header instead of a
	// rejection, for staged rollout
	EnforcementSoft EnforcementMode = "soft"
	// EnforcementStrict - inactive and suspended tenants are blocked
	EnforcementStrict EnforcementMode = "strict"
)

// EnforcementConfig represents tenant enforcement configuration
type EnforcementConfig struct {
	Mode              EnforcementMode `yaml:"mode"`
	TenantCacheTTL    time.Duration   `yaml:"tenant_cache_ttl"`
	AgreementCacheTTL time.Duration   `yaml:"agreement_cache_ttl"`
}

// Load loads configuration from a YAML file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if mode := os.Getenv("ENFORCEMENT_MODE"); mode != "" {
		c.Enforcement.Mode = EnforcementMode(mode)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		c.Server.Environment = env
	}
}

func (c *Config) setDefaults() {
	if c.Enforcement.Mode == "" {
		c.Enforcement.Mode = EnforcementStrict
	}
	if c.Enforcement.TenantCacheTTL == 0 {
		c.Enforcement.TenantCacheTTL = 30 * time.Second
	}
	if c.Enforcement.AgreementCacheTTL == 0 {
		c.Enforcement.AgreementCacheTTL = 30 * time.Second
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch c.Enforcement.Mode {
	case EnforcementDisabled, EnforcementSoft, EnforcementStrict:
	default:
		return fmt.Errorf("invalid enforcement mode: %q", c.Enforcement.Mode)
	}
	return nil
}
