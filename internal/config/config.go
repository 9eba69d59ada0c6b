// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr string `env:"TALLY_ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file path.
	DBPath string `env:"TALLY_DB_PATH" envDefault:"./data/tally.db"`

	// JWTSecret signs session tokens. Must be overridden outside dev.
	JWTSecret string `env:"TALLY_JWT_SECRET" envDefault:"dev-secret-change-me"`

	// TokenTTL is how long session tokens stay valid.
	TokenTTL time.Duration `env:"TALLY_TOKEN_TTL" envDefault:"24h"`

	// ReclaimInterval is how often the expired-settlement sweep runs.
	ReclaimInterval time.Duration `env:"TALLY_RECLAIM_INTERVAL" envDefault:"1h"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
