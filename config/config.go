package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling; every key can also be
// supplied through the environment.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPass   string `mapstructure:"REDIS_PASSWORD"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`
	SentryDSN   string `mapstructure:"SENTRY_DSN"`

	JWTSecretKey       string `mapstructure:"JWT_SECRET_KEY"`
	AccessTokenTTLMin  int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLMin int    `mapstructure:"REFRESH_TOKEN_TTL_MIN"`

	LoginMaxFailures     int `mapstructure:"LOGIN_MAX_FAILURES"`
	LoginLockDurationMin int `mapstructure:"LOGIN_LOCK_DURATION_MIN"`

	IPAttemptMax       int `mapstructure:"IP_ATTEMPT_MAX"`
	IPAttemptWindowMin int `mapstructure:"IP_ATTEMPT_WINDOW_MIN"`

	// DocPath is the route prefix serving the API documentation UI.
	// DocAllowedIPs gates it; "*" admits any address.
	DocPath       string   `mapstructure:"DOC_PATH"`
	DocAllowedIPs []string `mapstructure:"DOC_ALLOWED_IPS"`

	BcryptCost int `mapstructure:"BCRYPT_COST"`
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c *ServerConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
// Session registry entries expire together with the refresh token.
func (c *ServerConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLMin) * time.Minute
}

// LoginLockDuration returns how long an account stays locked after
// crossing the failure threshold.
func (c *ServerConfig) LoginLockDuration() time.Duration {
	return time.Duration(c.LoginLockDurationMin) * time.Minute
}

// IPAttemptWindow returns the fixed window of the per-IP attempt counter.
func (c *ServerConfig) IPAttemptWindow() time.Duration {
	return time.Duration(c.IPAttemptWindowMin) * time.Minute
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/clubd/")
	v.AddConfigPath("$HOME/.clubd")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/clubd_dev")
	v.SetDefault("MONGO_DB_NAME", "clubd_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("JWT_SECRET_KEY", "a_very_secret_jwt_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 30)
	v.SetDefault("REFRESH_TOKEN_TTL_MIN", 40)
	v.SetDefault("LOGIN_MAX_FAILURES", 5)
	v.SetDefault("LOGIN_LOCK_DURATION_MIN", 5)
	v.SetDefault("IP_ATTEMPT_MAX", 10)
	v.SetDefault("IP_ATTEMPT_WINDOW_MIN", 5)
	v.SetDefault("DOC_PATH", "/api-docs")
	v.SetDefault("DOC_ALLOWED_IPS", []string{"127.0.0.1"})
	v.SetDefault("BCRYPT_COST", 0) // 0 picks the bcrypt default

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
