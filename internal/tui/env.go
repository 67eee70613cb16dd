package tui

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"codeberg.org/vestilook/server/internal/client"
	"codeberg.org/vestilook/server/internal/status"
)

// Env is the terminal client's configuration
type Env struct {
	Endpoint       string        `env:"VESTILOOK_API_ENDPOINT" envDefault:"http://localhost:8080"`
	AccessToken    string        `env:"VESTILOOK_ACCESS_TOKEN"`
	Mode           string        `env:"VESTILOOK_ENV" envDefault:"development"`
	PollInterval   time.Duration `env:"VESTILOOK_POLL_INTERVAL" envDefault:"3s"`
	PollMaxBackoff time.Duration `env:"VESTILOOK_POLL_MAX_BACKOFF" envDefault:"30s"`
	Stream         bool          `env:"VESTILOOK_STREAM" envDefault:"true"`
	PreviewDir     string        `env:"VESTILOOK_PREVIEW_DIR"`
	RetainForHours int           `env:"VESTILOOK_RETAIN_HOURS"`
}

// loads the client configuration from the environment and an optional .env
func LoadEnv() (Env, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // a .env file is optional
	}

	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if e.PollInterval <= 0 {
		return Env{}, fmt.Errorf("VESTILOOK_POLL_INTERVAL must be positive")
	}

	if e.RetainForHours < 0 {
		return Env{}, fmt.Errorf("VESTILOOK_RETAIN_HOURS must not be negative")
	}

	return e, nil
}

// builds the app configuration, wiring the REST and stream clients
func (e Env) Config() Config {
	api := client.New(e.Endpoint, e.AccessToken, client.WithTimeout(requestTimeout))

	cfg := Config{
		API:  api,
		Mode: e.Mode,

		// successful polls keep the base interval; failures back off
		Interval: status.Backoff{
			Initial: e.PollInterval,
			Max:     e.PollMaxBackoff,
			Factor:  2,
		},
		PreviewDir:     e.PreviewDir,
		RetainForHours: e.RetainForHours,
	}

	if e.Stream {
		cfg.Stream = NewWSClient(api.StreamURL, e.AccessToken)
	}

	return cfg
}
