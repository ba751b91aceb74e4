package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTOMLConfig(t *testing.T) {
	cfg := DefaultTOMLConfig()

	assert.Equal(t, 10*time.Second, cfg.PendingSendTimeout())
	assert.Equal(t, 2*time.Second, cfg.TypingTTL())
	assert.Equal(t, time.Second, cfg.TypingDebounce())
	assert.Equal(t, 50, cfg.Timeouts.BackfillLimit)
	assert.NotEmpty(t, cfg.Server.APIBaseURL)
	assert.NotEmpty(t, cfg.Server.SocketURL)
}

func TestLoadConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTOMLConfig().Server.APIBaseURL, cfg.Server.APIBaseURL)

	// The default file now exists and loads back identically.
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
api_base_url = "https://chat.example.com"
socket_url = "wss://chat.example.com/socket"

[timeouts]
pending_send_seconds = 5
backfill_limit = 200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.Server.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.PendingSendTimeout())
	assert.Equal(t, 200, cfg.Timeouts.BackfillLimit)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	t.Setenv("SOLTERM_SERVER_API_BASE_URL", "https://env.example.com")
	t.Setenv("SOLTERM_TIMEOUTS_PENDING_SEND_SECONDS", "3")
	t.Setenv("SOLTERM_TIMEOUTS_TYPING_DEBOUNCE_MILLIS", "250")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Server.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.PendingSendTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.TypingDebounce())
}

func TestLoadConfigBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
