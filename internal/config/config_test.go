package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_ValidConfig tests loading a valid configuration
func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  api_port: 4070
  domain: "learn.example.com"

database:
  driver: "sqlite"
  database: "test.db"

cache:
  backend: "memory"
  ttl_seconds: 120

tenancy:
  enabled: true
  config_bucket: "lms"
  max_override_seconds: 600
  fallback_domain: "learn.example.com"
  defaults:
    platform_name: "Example Learning"
    language: "en"

auth:
  jwt_secret: "this-is-a-very-secure-jwt-secret-with-at-least-32-characters"
  admin_email: "admin@example.com"
  admin_password: "secure_password"

logging:
  level: "debug"
  format: "json"
  output: "stdout"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 4070, cfg.Server.APIPort)
	assert.Equal(t, "learn.example.com", cfg.Server.Domain)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.Database)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 120, cfg.Cache.TTLSeconds)
	assert.Equal(t, "lms", cfg.Tenancy.ConfigBucket)
	assert.Equal(t, 600, cfg.Tenancy.MaxOverrideSeconds)
	assert.Equal(t, "Example Learning", cfg.Tenancy.Defaults.PlatformName)
	assert.Equal(t, "secure_password", cfg.Auth.AdminPassword)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// TestLoad_Defaults tests that defaults are applied for omitted sections
func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
auth:
  jwt_secret: "another-very-secure-secret-for-the-tests-here"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 300, cfg.Tenancy.MaxOverrideSeconds)
	assert.Equal(t, "lms", cfg.Tenancy.ConfigBucket)
	assert.True(t, cfg.Tenancy.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

// TestLoad_MissingFile tests loading a nonexistent config file
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

// TestCacheConfig_TTL tests TTL duration conversion
func TestCacheConfig_TTL(t *testing.T) {
	c := CacheConfig{TTLSeconds: 120}
	assert.Equal(t, "2m0s", c.TTL().String())
}
