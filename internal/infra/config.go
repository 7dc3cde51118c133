package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers understood by storage.Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MaxDisplayScale bounds AMOUNT_DISPLAY_SCALE.
const MaxDisplayScale = 18

// StoreConfig selects and tunes the ledger store. Both the API server and
// ledgerctl read it from the same environment variables.
type StoreConfig struct {
	StoreDriver  string   `env:"STORE_DRIVER"         envDefault:"sqlite"`
	SQLitePath   string   `env:"SQLITE_PATH"          envDefault:"tokenart.db"`
	DatabaseURL  string   `env:"DATABASE_URL"`
	DBMaxConns   int32    `env:"DB_MAX_CONNS"         envDefault:"10"`
	GoalSetters  []string `env:"GOAL_SETTERS"         envSeparator:","`
	DisplayScale int32    `env:"AMOUNT_DISPLAY_SCALE" envDefault:"7"`
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`
	Port   string `env:"PORT"    envDefault:"8080"`

	StoreConfig

	JWTSecret          string        `env:"JWT_SECRET"`
	JWTIssuer          string        `env:"JWT_ISSUER"                envDefault:"tokenart"`
	JWTTTL             time.Duration `env:"JWT_TTL"                   envDefault:"1h"`
	WalletMaxSkew      time.Duration `env:"WALLET_SIGNATURE_MAX_SKEW" envDefault:"5m"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS"      envSeparator:","`
	RateLimitPerMin    int           `env:"RATE_LIMIT_PER_MINUTE"     envDefault:"30"`
	HTTPReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT"         envDefault:"15s"`
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT"        envDefault:"30s"`
	HTTPIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT"         envDefault:"60s"`
	LogFile            string        `env:"LOG_FILE"`
	LogMaxSizeMB       int           `env:"LOG_MAX_SIZE_MB"           envDefault:"100"`
	LogMaxBackups      int           `env:"LOG_MAX_BACKUPS"           envDefault:"5"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.StoreConfig.Normalize(); err != nil {
		return nil, err
	}
	cfg.CORSAllowedOrigins = trimList(cfg.CORSAllowedOrigins)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// LoadStoreConfig parses only the store settings. It does not validate them
// so that callers can override values with flags before Normalize.
func LoadStoreConfig() (StoreConfig, error) {
	var sc StoreConfig
	if err := env.Parse(&sc); err != nil {
		return sc, fmt.Errorf("parse env: %w", err)
	}
	return sc, nil
}

// Normalize cleans the store settings in place and rejects invalid ones.
func (c *StoreConfig) Normalize() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if c.StoreDriver == "" {
		c.StoreDriver = DriverSQLite
	}
	c.GoalSetters = trimList(c.GoalSetters)

	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver)
	}
	if c.DisplayScale < 0 || c.DisplayScale > MaxDisplayScale {
		return fmt.Errorf("AMOUNT_DISPLAY_SCALE must be between 0 and %d", MaxDisplayScale)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	return nil
}

func trimList(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
