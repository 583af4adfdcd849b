package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Notify  NotifyConfig
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Addr normalizes PORT into a listen address. Accepts "8080", ":8080" or
// "127.0.0.1:8080".
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

// AIConfig describes the response-generation collaborator.
type AIConfig struct {
	APIKey         string `env:"AI_API_KEY"`
	Model          string `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL        string `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	StreamResponse bool   `env:"AI_STREAM" envDefault:"true"`
	TimeoutSeconds int    `env:"AI_TIMEOUT_SECONDS" envDefault:"120"`
}

// Enabled reports whether the assistant credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// StorageConfig describes the durable store location.
type StorageConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"hamdam.db"`
}

// NotifyConfig describes the quiet-hours suppression window as local
// wall-clock times ("22:00", "07:00"). Empty values disable suppression.
type NotifyConfig struct {
	QuietStart string `env:"QUIET_HOURS_START"`
	QuietEnd   string `env:"QUIET_HOURS_END"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Server.Addr(); err != nil {
		return nil, err
	}
	return cfg, nil
}
