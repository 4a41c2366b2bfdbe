package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DefaultMaxProtocolBodyBytes, cfg.Server.MaxProtocolBodyBytes)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.S3.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  address: ":9090"
  max_protocol_body_bytes: 2048
database:
  driver: memory
jwt:
  secret: from-file
  expiration: 30m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.EqualValues(t, 2048, cfg.Server.MaxProtocolBodyBytes)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestValidate(t *testing.T) {
	base := Config{
		Server:   ServerConfig{MaxProtocolBodyBytes: 10},
		Database: DatabaseConfig{Driver: "mongo"},
		JWT:      JWTConfig{Secret: "s"},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Database.Driver = "postgres"
	assert.Error(t, bad.Validate())

	bad = base
	bad.S3.Enabled = true
	assert.Error(t, bad.Validate())

	bad = base
	bad.LLM.Enabled = true
	assert.Error(t, bad.Validate())
}
