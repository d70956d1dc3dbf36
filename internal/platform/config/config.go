package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Server captures process configuration. Every field reads CARP_<NAME>.
type Server struct {
	Addr          string        `envconfig:"ADDR" default:":8080"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	DBDriver      string        `envconfig:"DB_DRIVER" default:"postgres"`
	Store         string        `envconfig:"STORE" default:"postgres"`
	JWTSigningKey string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	TxTimeout     time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
	TxRetries     int           `envconfig:"TX_RETRIES" default:"1"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	MaxOpenConns  int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`

	// RedisURL shares guest rate limit counters between replicas. Empty keeps
	// them in process memory.
	RedisURL        string        `envconfig:"REDIS_URL"`
	GuestRateLimit  int           `envconfig:"GUEST_RATE_LIMIT" default:"30"`
	GuestRateWindow time.Duration `envconfig:"GUEST_RATE_WINDOW" default:"1m"`
	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	// Empty means the client IP is always the connection peer.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := envconfig.Process("carp", &cfg); err != nil {
		return Server{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("CARP_DATABASE_URL is required when CARP_STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown CARP_STORE %q", c.Store)
	}
	switch c.DBDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("unknown CARP_DB_DRIVER %q", c.DBDriver)
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("CARP_TX_TIMEOUT must be positive")
	}
	if c.TxRetries < 0 {
		return fmt.Errorf("CARP_TX_RETRIES must not be negative")
	}
	if c.GuestRateLimit < 0 || c.GuestRateWindow < 0 {
		return fmt.Errorf("CARP_GUEST_RATE_LIMIT and CARP_GUEST_RATE_WINDOW must not be negative")
	}
	return nil
}
