package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backend holds the endpoints and key for the managed backend.
type Backend struct {
	APIURL      string `toml:"api_url"`
	RealtimeURL string `toml:"realtime_url"`
	APIKey      string `toml:"api_key"`
}

// Profile holds per-profile settings.
type Profile struct {
	UserID string `toml:"user_id"`
}

// Config represents the global ~/.lume/config.toml.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	SyncDebounceMs int                `toml:"sync_debounce_ms"`
	Backend        Backend            `toml:"backend"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Load reads config from the given path. Returns an error if the file
// is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
