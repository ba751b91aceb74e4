package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// State manages client-side persistent local state: the explicit-disconnect
// flag, the last bound wallet address and the last active channel. It is a
// single-connection WAL sqlite database with one key/value table.
type State struct {
	db  *sql.DB
	dir string
}

// OpenState opens or creates the client state database.
func OpenState(path string) (*State, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Client only needs one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS Config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &State{db: db, dir: dir}, nil
}

// Close closes the state database.
func (s *State) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value.
func (s *State) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value.
func (s *State) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

const (
	configKeyExplicitDisconnect = "wallet_explicitly_disconnected"
	configKeyLastWallet         = "last_wallet_address"
	configKeyLastChannel        = "last_channel"
)

// GetExplicitDisconnect reports whether the user explicitly disconnected
// their wallet; auto-rebinding is suppressed while set.
func (s *State) GetExplicitDisconnect() bool {
	val, _ := s.GetConfig(configKeyExplicitDisconnect)
	return val == "true"
}

// SetExplicitDisconnect records or clears the explicit-disconnect flag.
func (s *State) SetExplicitDisconnect(disconnected bool) error {
	if disconnected {
		return s.SetConfig(configKeyExplicitDisconnect, "true")
	}
	return s.SetConfig(configKeyExplicitDisconnect, "")
}

// GetLastWalletAddress returns the last bound wallet address.
func (s *State) GetLastWalletAddress() string {
	addr, _ := s.GetConfig(configKeyLastWallet)
	return addr
}

// SetLastWalletAddress stores the last bound wallet address.
func (s *State) SetLastWalletAddress(address string) error {
	return s.SetConfig(configKeyLastWallet, address)
}

// GetLastChannel returns the channel that was active when the client last
// ran, empty if never stored.
func (s *State) GetLastChannel() string {
	channel, _ := s.GetConfig(configKeyLastChannel)
	return channel
}

// SetLastChannel stores the active channel for session restore.
func (s *State) SetLastChannel(channel string) error {
	return s.SetConfig(configKeyLastChannel, channel)
}

// GetStateDir returns the directory where state is stored.
func (s *State) GetStateDir() string {
	return s.dir
}
