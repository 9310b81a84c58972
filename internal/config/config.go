package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr     string `envconfig:"LISTEN_ADDR" default:":3001"`
	DatabasePath   string `envconfig:"DATABASE_PATH" default:"data/apirouter.db"`
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"sqlite"`
	BraveBaseURL   string `envconfig:"BRAVE_BASE_URL" default:""`
}

// Load reads settings from the environment, merging a local .env file first
// when one exists.
func Load() (Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process("APIROUTER", &s); err != nil {
		return Settings{}, fmt.Errorf("process env: %w", err)
	}

	switch s.StorageBackend {
	case "memory", "sqlite":
	default:
		return Settings{}, fmt.Errorf("unknown storage backend %q", s.StorageBackend)
	}

	return s, nil
}
