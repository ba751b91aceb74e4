package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the client config file
type TOMLConfig struct {
	Server    ServerSection    `toml:"server"`
	Timeouts  TimeoutsSection  `toml:"timeouts"`
	Reconnect ReconnectSection `toml:"reconnect"`
}

type ServerSection struct {
	APIBaseURL string `toml:"api_base_url"`
	SocketURL  string `toml:"socket_url"`
}

type TimeoutsSection struct {
	PendingSendSeconds   int `toml:"pending_send_seconds"`
	TypingTTLSeconds     int `toml:"typing_ttl_seconds"`
	TypingDebounceMillis int `toml:"typing_debounce_millis"`
	BackfillLimit        int `toml:"backfill_limit"`
}

type ReconnectSection struct {
	InitialDelaySeconds int `toml:"initial_delay_seconds"`
	MaxDelaySeconds     int `toml:"max_delay_seconds"`
}

// DefaultTOMLConfig returns the default client configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			APIBaseURL: "http://localhost:5000",
			SocketURL:  "ws://localhost:5000/socket",
		},
		Timeouts: TimeoutsSection{
			PendingSendSeconds:   10,
			TypingTTLSeconds:     2,
			TypingDebounceMillis: 1000,
			BackfillLimit:        50,
		},
		Reconnect: ReconnectSection{
			InitialDelaySeconds: 1,
			MaxDelaySeconds:     30,
		},
	}
}

// PendingSendTimeout returns the bounded wait for an optimistic send.
func (c TOMLConfig) PendingSendTimeout() time.Duration {
	return time.Duration(c.Timeouts.PendingSendSeconds) * time.Second
}

// TypingTTL returns the lifetime of a remote typing entry.
func (c TOMLConfig) TypingTTL() time.Duration {
	return time.Duration(c.Timeouts.TypingTTLSeconds) * time.Second
}

// TypingDebounce returns the settle window for local typing bursts.
func (c TOMLConfig) TypingDebounce() time.Duration {
	return time.Duration(c.Timeouts.TypingDebounceMillis) * time.Millisecond
}

// LoadConfig loads configuration from a TOML file, creates a default file if
// not found, and applies environment variable overrides
func LoadConfig(path string) (TOMLConfig, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		// Best effort: keep running on defaults even if the file can't
		// be written.
		_ = writeDefaultConfig(path, config)
		return applyEnvOverrides(config), nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return applyEnvOverrides(config), nil
}

// applyEnvOverrides applies environment variable overrides to the config
// Environment variables follow the pattern: SOLTERM_SECTION_KEY
// Example: SOLTERM_SERVER_API_BASE_URL=https://chat.example.com
func applyEnvOverrides(config TOMLConfig) TOMLConfig {
	if val := os.Getenv("SOLTERM_SERVER_API_BASE_URL"); val != "" {
		config.Server.APIBaseURL = val
	}
	if val := os.Getenv("SOLTERM_SERVER_SOCKET_URL"); val != "" {
		config.Server.SocketURL = val
	}
	if val := os.Getenv("SOLTERM_TIMEOUTS_PENDING_SEND_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Timeouts.PendingSendSeconds = n
		}
	}
	if val := os.Getenv("SOLTERM_TIMEOUTS_TYPING_TTL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Timeouts.TypingTTLSeconds = n
		}
	}
	if val := os.Getenv("SOLTERM_TIMEOUTS_TYPING_DEBOUNCE_MILLIS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Timeouts.TypingDebounceMillis = n
		}
	}
	if val := os.Getenv("SOLTERM_TIMEOUTS_BACKFILL_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Timeouts.BackfillLimit = n
		}
	}
	if val := os.Getenv("SOLTERM_RECONNECT_INITIAL_DELAY_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Reconnect.InitialDelaySeconds = n
		}
	}
	if val := os.Getenv("SOLTERM_RECONNECT_MAX_DELAY_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Reconnect.MaxDelaySeconds = n
		}
	}
	return config
}

func writeDefaultConfig(path string, config TOMLConfig) error {
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
