package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/solterm/solterm/pkg/protocol"
)

var (
	// ErrChannelNotFound indicates the channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrChannelExists indicates a channel with that name already exists.
	ErrChannelExists = errors.New("channel already exists")
)

// DB wraps the SQLite database backing the chat server: message history,
// the channel directory and wallet roles.
type DB struct {
	conn      *sql.DB // Read connection pool
	writeConn *sql.DB // Dedicated write connection
}

// Open opens the SQLite database at the given path and initializes the
// schema if needed.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Multiple readers in WAL mode, writes go through a dedicated
	// single connection below.
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := configureConn(conn); err != nil {
		conn.Close()
		return nil, err
	}

	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0)

	if err := configureConn(writeConn); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, err
	}

	db := &DB{conn: conn, writeConn: writeConn}
	if err := db.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configureConn(conn *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id             TEXT PRIMARY KEY,
		channel        TEXT NOT NULL,
		username       TEXT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		role           TEXT NOT NULL DEFAULT 'user',
		text           TEXT NOT NULL,
		timestamp_ms   INTEGER NOT NULL,
		is_broadcast   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel_ts ON messages(channel, timestamp_ms);

	CREATE TABLE IF NOT EXISTS channels (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS voice_channels (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS users (
		wallet_address TEXT PRIMARY KEY,
		role           TEXT NOT NULL DEFAULT 'user'
	);
	`
	if _, err := db.writeConn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes both connections.
func (db *DB) Close() error {
	werr := db.writeConn.Close()
	rerr := db.conn.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// SeedDefaultChannels creates the default channel set when the directory is
// empty.
func (db *DB) SeedDefaultChannels() error {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM channels").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []protocol.ChannelRecord{
		{Name: "general", Description: "General discussion"},
		{Name: "trading", Description: "Market talk"},
		{Name: "support", Description: "Help and questions"},
	}
	for _, ch := range defaults {
		if _, err := db.CreateChannel(ch.Name, ch.Description); err != nil {
			return err
		}
	}

	_, err := db.writeConn.Exec(
		"INSERT OR IGNORE INTO voice_channels (id, name) VALUES (?, ?)",
		uuid.NewString(), "Lounge",
	)
	return err
}

// SaveMessage persists one confirmed message.
func (db *DB) SaveMessage(rec protocol.MessageRecord) error {
	broadcast := 0
	if rec.IsBroadcast {
		broadcast = 1
	}
	_, err := db.writeConn.Exec(`
		INSERT INTO messages (id, channel, username, wallet_address, role, text, timestamp_ms, is_broadcast)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Channel, rec.Username, rec.WalletAddress, rec.Role, rec.Text, rec.Timestamp.UnixMilli(), broadcast)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest limit messages for one channel, oldest
// first.
func (db *DB) RecentMessages(channel string, limit int) ([]protocol.MessageRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, channel, username, wallet_address, role, text, timestamp_ms, is_broadcast
		FROM messages
		WHERE channel = ?
		ORDER BY timestamp_ms DESC, id DESC
		LIMIT ?
	`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(records)
	return records, nil
}

// RecentMessagesAll returns the newest limit messages per channel, keyed by
// channel, each oldest first.
func (db *DB) RecentMessagesAll(limit int) (map[string][]protocol.MessageRecord, error) {
	channels, err := db.Channels()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]protocol.MessageRecord, len(channels))
	for _, ch := range channels {
		records, err := db.RecentMessages(ch.Name, limit)
		if err != nil {
			return nil, err
		}
		out[ch.Name] = records
	}
	return out, nil
}

func scanMessages(rows *sql.Rows) ([]protocol.MessageRecord, error) {
	var records []protocol.MessageRecord
	for rows.Next() {
		var rec protocol.MessageRecord
		var ts int64
		var broadcast int
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.Username, &rec.WalletAddress, &rec.Role, &rec.Text, &ts, &broadcast); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		rec.IsBroadcast = broadcast != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

func reverse(records []protocol.MessageRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

// Channels returns the channel directory sorted by name.
func (db *DB) Channels() ([]protocol.ChannelRecord, error) {
	rows, err := db.conn.Query("SELECT id, name, description FROM channels ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []protocol.ChannelRecord
	for rows.Next() {
		var ch protocol.ChannelRecord
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// CreateChannel adds a channel to the directory.
func (db *DB) CreateChannel(name, description string) (protocol.ChannelRecord, error) {
	ch := protocol.ChannelRecord{ID: uuid.NewString(), Name: name, Description: description}
	_, err := db.writeConn.Exec(
		"INSERT INTO channels (id, name, description) VALUES (?, ?, ?)",
		ch.ID, ch.Name, ch.Description,
	)
	if err != nil {
		return protocol.ChannelRecord{}, ErrChannelExists
	}
	return ch, nil
}

// DeleteChannel removes a channel and its messages.
func (db *DB) DeleteChannel(name string) error {
	res, err := db.writeConn.Exec("DELETE FROM channels WHERE name = ?", name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrChannelNotFound
	}
	_, err = db.writeConn.Exec("DELETE FROM messages WHERE channel = ?", name)
	return err
}

// VoiceChannels returns the voice-channel directory.
func (db *DB) VoiceChannels() ([]protocol.VoiceChannelRecord, error) {
	rows, err := db.conn.Query("SELECT id, name FROM voice_channels ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []protocol.VoiceChannelRecord
	for rows.Next() {
		var ch protocol.VoiceChannelRecord
		if err := rows.Scan(&ch.ID, &ch.Name); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// UserRole returns the stored role for a wallet address, defaulting to the
// plain user role.
func (db *DB) UserRole(walletAddress string) (string, error) {
	var role string
	err := db.conn.QueryRow("SELECT role FROM users WHERE wallet_address = ?", walletAddress).Scan(&role)
	if err == sql.ErrNoRows {
		return protocol.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// SetUserRole stores a role assignment for a wallet address.
func (db *DB) SetUserRole(walletAddress, role string) error {
	_, err := db.writeConn.Exec(`
		INSERT INTO users (wallet_address, role) VALUES (?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET role = excluded.role
	`, walletAddress, role)
	return err
}
