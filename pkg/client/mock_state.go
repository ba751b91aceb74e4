package client

import "sync"

// MockState is an in-memory test implementation of StateInterface
type MockState struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMockState creates a new in-memory state store
func NewMockState() *MockState {
	return &MockState{values: make(map[string]string)}
}

// GetConfig returns a stored value, empty string if unset
func (m *MockState) GetConfig(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

// SetConfig stores a value
func (m *MockState) SetConfig(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// GetExplicitDisconnect reports the explicit-disconnect flag
func (m *MockState) GetExplicitDisconnect() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[configKeyExplicitDisconnect] == "true"
}

// SetExplicitDisconnect records or clears the explicit-disconnect flag
func (m *MockState) SetExplicitDisconnect(disconnected bool) error {
	value := "false"
	if disconnected {
		value = "true"
	}
	return m.SetConfig(configKeyExplicitDisconnect, value)
}

// GetLastWalletAddress returns the last bound wallet address
func (m *MockState) GetLastWalletAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[configKeyLastWallet]
}

// SetLastWalletAddress stores the last bound wallet address
func (m *MockState) SetLastWalletAddress(address string) error {
	return m.SetConfig(configKeyLastWallet, address)
}

// GetLastChannel returns the last active channel
func (m *MockState) GetLastChannel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[configKeyLastChannel]
}

// SetLastChannel stores the active channel
func (m *MockState) SetLastChannel(channel string) error {
	return m.SetConfig(configKeyLastChannel, channel)
}

// GetStateDir returns a placeholder directory
func (m *MockState) GetStateDir() string {
	return "/tmp/solterm-mock"
}

// Close is a no-op for mock
func (m *MockState) Close() error {
	return nil
}

var _ StateInterface = (*MockState)(nil)
