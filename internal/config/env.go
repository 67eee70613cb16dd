package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	return parse()
}

func parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Generation.DefaultRetainHours < 1 || c.Generation.DefaultRetainHours > c.Generation.MaxRetainHours {
		return fmt.Errorf("VTON_DEFAULT_RETAIN_HOURS must be between 1 and VTON_MAX_RETAIN_HOURS")
	}

	if c.Quota.FreeTotal < 0 {
		return fmt.Errorf("QUOTA_FREE_TOTAL must not be negative")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	if len(c.Garment.AllowedTypes) == 0 {
		return fmt.Errorf("GARMENT_ALLOWED_TYPES must list at least one content type")
	}

	return nil
}

// reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
