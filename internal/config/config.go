package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"production"`
	AppURL     string `envconfig:"APP_URL" default:"http://localhost:8080"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`

	MySQLDSN  string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"`
	ResetDB   bool   `envconfig:"RESET_DB" default:"false"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	// PasswordHMACKey keys the HMAC step of the credential hasher. Rotating it
	// invalidates every stored credential.
	PasswordHMACKey string `envconfig:"PASSWORD_HMAC_KEY"`
	BcryptCost      int    `envconfig:"BCRYPT_COST" default:"10"`

	SessionSecret       string        `envconfig:"SESSION_SECRET"`
	SessionCookie       string        `envconfig:"SESSION_COOKIE" default:"elkayan_session"`
	SessionLifetime     time.Duration `envconfig:"SESSION_LIFETIME" default:"2h"`
	SessionSecureCookie bool          `envconfig:"SESSION_SECURE_COOKIE" default:"false"`

	ResetTokenTTL time.Duration `envconfig:"PASSWORD_RESET_TTL" default:"60m"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"elkayan.events"`

	AuditBuffer int `envconfig:"AUDIT_BUFFER" default:"256"`

	EmailCheckEnabled              bool `envconfig:"EMAIL_CHECK_ENABLED" default:"true"`
	RevokeSessionsOnPasswordChange bool `envconfig:"REVOKE_SESSIONS_ON_PASSWORD_CHANGE" default:"false"`

	SwaggerHost string `envconfig:"SWAGGER_HOST"`
}

// Load builds Config from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with. A missing
// PASSWORD_HMAC_KEY is deliberately not rejected here: credential operations
// fail with a configuration error at call time instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if c.SessionLifetime <= 0 {
		return errors.New("SESSION_LIFETIME must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("PASSWORD_RESET_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST %d out of range", c.BcryptCost)
	}
	return nil
}

// IsDevelopment reports whether the app runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
