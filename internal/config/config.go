package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tenancy  TenancyConfig  `mapstructure:"tenancy"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	APIPort int    `mapstructure:"api_port"`
	Domain  string `mapstructure:"domain"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // "memory" or "redis"
	TTLSeconds    int    `mapstructure:"ttl_seconds"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// TTL returns the cache time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TenancyConfig holds tenant resolution settings
type TenancyConfig struct {
	Enabled            bool              `mapstructure:"enabled"`
	ConfigBucket       string            `mapstructure:"config_bucket"` // "lms" or "studio"
	MaxOverrideSeconds int               `mapstructure:"max_override_seconds"`
	FallbackDomain     string            `mapstructure:"fallback_domain"`
	TaskStrategies     map[string]string `mapstructure:"task_strategies"`
	Defaults           TenancyDefaults   `mapstructure:"defaults"`
}

// MaxOverride returns the maximum lifetime of an installed snapshot.
func (c TenancyConfig) MaxOverride() time.Duration {
	return time.Duration(c.MaxOverrideSeconds) * time.Second
}

// TenancyDefaults are the baseline settings values visible when no tenant
// override is installed.
type TenancyDefaults struct {
	PlatformName        string `mapstructure:"platform_name"`
	SiteName            string `mapstructure:"site_name"`
	LMSRootURL          string `mapstructure:"lms_root_url"`
	SessionCookieDomain string `mapstructure:"session_cookie_domain"`
	ContactEmail        string `mapstructure:"contact_email"`
	Language            string `mapstructure:"language"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.api_port", 4070)
	viper.SetDefault("server.domain", "learn.example.com")

	// Database defaults (SQLite for easier local development)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.database", "tenantd.db")
	// PostgreSQL defaults (if driver is set to postgres)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "tenantd")
	viper.SetDefault("database.ssl_mode", "disable")

	// Cache defaults
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl_seconds", 300)
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)

	// Tenancy defaults
	viper.SetDefault("tenancy.enabled", true)
	viper.SetDefault("tenancy.config_bucket", "lms")
	viper.SetDefault("tenancy.max_override_seconds", 300)
	viper.SetDefault("tenancy.defaults.platform_name", "Open Learning")
	viper.SetDefault("tenancy.defaults.language", "en")

	// Auth defaults
	viper.SetDefault("auth.admin_email", "admin@example.com")
	viper.SetDefault("auth.admin_password", "admin123") // Change in production!

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}
