package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultMaxProtocolBodyBytes is the documented ceiling for
// POST /api/trainer/health-protocols request bodies (1 MiB).
const DefaultMaxProtocolBodyBytes int64 = 1 << 20

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address              string        `mapstructure:"address"`
	MaxProtocolBodyBytes int64         `mapstructure:"max_protocol_body_bytes"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	ReleaseMode          bool          `mapstructure:"release_mode"`
}

// DatabaseConfig selects the persistence driver: "mongo" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LLMConfig configures optional protocol content generation.
type LLMConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil // env vars and defaults are enough
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.max_protocol_body_bytes", DefaultMaxProtocolBodyBytes)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.release_mode", false)
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "health_protocols")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	for _, key := range []string{
		"jwt.secret", "s3.endpoint", "s3.region", "s3.access_key_id",
		"s3.secret_access_key", "s3.bucket_name", "llm.api_key",
	} {
		v.SetDefault(key, "")
	}
}

// Validate reports configuration that cannot work at runtime.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return errors.New("database.driver must be mongo or memory")
	}
	if c.Server.MaxProtocolBodyBytes <= 0 {
		return errors.New("server.max_protocol_body_bytes must be positive")
	}
	if c.S3.Enabled && c.S3.BucketName == "" {
		return errors.New("s3.bucket_name is required when s3 is enabled")
	}
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required when llm is enabled")
	}
	return nil
}
