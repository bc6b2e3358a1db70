package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// FallbackJWTSecret is substituted when JWT_SECRET is unset. It keeps local
// runs and tests deterministic and is refused in production.
const FallbackJWTSecret = "sweetshop-dev-secret"

const envProduction = "production"

type Config struct {
	Port      string        `env:"PORT,       default=5000"`
	Env       string        `env:"ENV,        default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=168h"`
	LogLevel  string        `env:"LOG_LEVEL,  default=info"`
	LogFile   string        `env:"LOG_FILE"`

	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`

	// LedgerWorkers is the number of goroutines writing stock movements.
	LedgerWorkers int `env:"LEDGER_WORKERS, default=4"`

	Mongo MongoConfig
	Redis RedisConfig

	// FallbackSecret is true when JWTSecret was defaulted.
	FallbackSecret bool
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=sweet_shop"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,        default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,          default=0"`
	CacheTTL time.Duration `env:"CATALOG_CACHE_TTL, default=5m"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == envProduction
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return ":" + c.Port
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from the given lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("config: JWT_SECRET is required in production")
		}
		cfg.JWTSecret = FallbackJWTSecret
		cfg.FallbackSecret = true
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("config: TOKEN_TTL must be positive")
	}

	return &cfg, nil
}

// MustLoad is Load that panics on error, for process start-up.
func MustLoad(ctx context.Context) *Config {
	cfg, err := Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}
