package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds server configuration.
type Config struct {
	HTTPPort         int      `toml:"http_port"`
	DatabasePath     string   `toml:"database_path"`
	MaxMessageLength int      `toml:"max_message_length"`
	MessageRateLimit int      `toml:"message_rate_limit"` // per minute per session
	BackfillLimit    int      `toml:"backfill_limit"`
	AdminWallets     []string `toml:"admin_wallets"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		HTTPPort:         8080,
		DatabasePath:     "~/.solterm/server.db",
		MaxMessageLength: 4096,
		MessageRateLimit: 30,
		BackfillLimit:    50,
	}
}

// LoadConfig loads configuration from a TOML file, writing the default file
// when none exists yet.
func LoadConfig(path string) (Config, error) {
	path = expandHome(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := writeDefault(path, config); err != nil {
			// Keep running on defaults if the file can't be written.
			return config, nil
		}
		return config, nil
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse server config: %w", err)
	}
	return config, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func writeDefault(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(config)
}

// ExpandedDatabasePath returns the database path with ~ expanded.
func (c Config) ExpandedDatabasePath() string {
	return expandHome(c.DatabasePath)
}
