package client

import (
	"context"

	"github.com/solterm/solterm/pkg/protocol"
)

// ConnectionInterface defines the interface for the push-transport session.
// This allows for mocking in tests while the real TransportSession
// implements all these methods.
type ConnectionInterface interface {
	// Connection management
	Connect() error
	Close()
	IsConnected() bool
	DisableAutoReconnect()

	// Identity binding
	Announce(identity protocol.IdentityPayload) error
	Retract()

	// Event sending
	Send(event string, payload interface{}) error

	// Channels for receiving data
	Events() <-chan *protocol.Envelope
	Errors() <-chan error
	StateChanges() <-chan SessionStateUpdate
}

// BackfillInterface defines the interface for the REST backfill collaborator.
type BackfillInterface interface {
	FetchChannel(ctx context.Context, channel string, limit int) ([]protocol.MessageRecord, error)
	FetchAll(ctx context.Context, limit int) (map[string][]protocol.MessageRecord, error)
	ListChannels(ctx context.Context) ([]protocol.ChannelRecord, error)
	ListVoiceChannels(ctx context.Context) ([]protocol.VoiceChannelRecord, error)
}

// StateInterface defines the interface for client state persistence.
type StateInterface interface {
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	GetExplicitDisconnect() bool
	SetExplicitDisconnect(disconnected bool) error

	GetLastWalletAddress() string
	SetLastWalletAddress(address string) error

	GetLastChannel() string
	SetLastChannel(channel string) error

	GetStateDir() string
	Close() error
}

// WalletProvider is the external identity provider. Any non-empty address is
// sufficient identity; an empty address means disconnected.
type WalletProvider interface {
	// Address returns the current wallet address, empty when no wallet is
	// connected.
	Address() string

	// Changes delivers the address on every connect/disconnect transition
	// (empty string on disconnect).
	Changes() <-chan string
}

var (
	_ ConnectionInterface = (*TransportSession)(nil)
	_ BackfillInterface   = (*BackfillClient)(nil)
	_ StateInterface      = (*State)(nil)
)
