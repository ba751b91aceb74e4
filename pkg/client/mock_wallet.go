package client

import "sync"

// MockWallet is a test implementation of WalletProvider
type MockWallet struct {
	mu      sync.RWMutex
	address string
	changes chan string
}

// NewMockWallet creates a mock wallet provider with an initial address
func NewMockWallet(address string) *MockWallet {
	return &MockWallet{
		address: address,
		changes: make(chan string, 10),
	}
}

// Address returns the current wallet address
func (m *MockWallet) Address() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.address
}

// Changes returns the address transition channel
func (m *MockWallet) Changes() <-chan string {
	return m.changes
}

// SimulateConnect switches to a new address and emits the transition
func (m *MockWallet) SimulateConnect(address string) {
	m.mu.Lock()
	m.address = address
	m.mu.Unlock()
	m.changes <- address
}

// SimulateDisconnect clears the address and emits the transition
func (m *MockWallet) SimulateDisconnect() {
	m.SimulateConnect("")
}

var _ WalletProvider = (*MockWallet)(nil)
