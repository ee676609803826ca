// Package config loads pipeline settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the settings the pipeline reads from the environment.
// CLI flags override individual fields after loading.
type Config struct {
	BaseURL     string        `env:"HRFETCH_BASE_URL" env-default:"https://www.handelsregister.de/rp_web"`
	Timeout     time.Duration `env:"HRFETCH_TIMEOUT" env-default:"10s"`
	Concurrency int           `env:"HRFETCH_CONCURRENCY" env-default:"4"`
	CachePath   string        `env:"HRFETCH_CACHE_PATH"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &cfg, nil
}
