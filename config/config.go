// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Email providers
const (
	EmailNone     = "none"
	EmailPostmark = "postmark"
	EmailSendGrid = "sendgrid"
)

// Config holds every environment-driven setting.
type Config struct {
	Port           string        `env:"PORT,default=5000"`
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,default=168h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`

	StoreDriver   string `env:"STORE_DRIVER,default=memory"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE,default=storefront"`

	RedisURL        string        `env:"REDIS_URL"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB,default=0"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL,default=5m"`

	EmailProvider    string `env:"EMAIL_PROVIDER,default=none"`
	PostmarkAPIToken string `env:"POSTMARK_API_TOKEN"`
	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	EmailSender      string `env:"EMAIL_SENDER,default=no-reply@storefront.local"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SeedSampleData bool `env:"SEED_SAMPLE_DATA,default=true"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=10"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	// a missing .env file is fine; the real environment still applies
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.EmailProvider = strings.ToLower(cfg.EmailProvider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects missing or inconsistent settings.
func (c *Config) Validate() error {
	var problems []string

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "TOKEN_TTL must be positive")
	}

	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required for the mongo driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.EmailProvider {
	case EmailNone, "":
	case EmailPostmark:
		if c.PostmarkAPIToken == "" {
			problems = append(problems, "POSTMARK_API_TOKEN is required for the postmark provider")
		}
	case EmailSendGrid:
		if c.SendGridAPIKey == "" {
			problems = append(problems, "SENDGRID_API_KEY is required for the sendgrid provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown EMAIL_PROVIDER %q", c.EmailProvider))
	}

	admin := []string{c.AdminUsername, c.AdminEmail, c.AdminPassword}
	set := 0
	for _, v := range admin {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(admin) {
		problems = append(problems, "ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HasAdmin reports whether an admin account should be bootstrapped.
func (c *Config) HasAdmin() bool {
	return c.AdminUsername != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
