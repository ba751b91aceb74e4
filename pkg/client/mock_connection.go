package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/solterm/solterm/pkg/protocol"
)

// MockConnection is a test implementation of ConnectionInterface
type MockConnection struct {
	mu sync.RWMutex

	// State
	connected     bool
	autoReconnect bool
	connectErr    error
	sendErr       error
	announced     *protocol.IdentityPayload

	// Channels for communication
	incoming    chan *protocol.Envelope
	errors      chan error
	stateChange chan SessionStateUpdate

	// Sent events for verification
	SentEvents []MockSentEvent
}

// MockSentEvent tracks events sent via Send
type MockSentEvent struct {
	Event   string
	Payload interface{}
}

// NewMockConnection creates a new mock connection
func NewMockConnection() *MockConnection {
	return &MockConnection{
		incoming:    make(chan *protocol.Envelope, 100),
		errors:      make(chan error, 10),
		stateChange: make(chan SessionStateUpdate, 10),
		SentEvents:  make([]MockSentEvent, 0),
	}
}

// Connect simulates connecting to the server
func (m *MockConnection) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return m.connectErr
	}

	m.connected = true
	return nil
}

// Close closes the mock connection
func (m *MockConnection) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected && m.incoming == nil {
		return
	}
	m.connected = false
	close(m.incoming)
	close(m.errors)
	close(m.stateChange)
	m.incoming = nil
}

// IsConnected returns the connection status
func (m *MockConnection) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// DisableAutoReconnect disables auto-reconnect
func (m *MockConnection) DisableAutoReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = false
}

// Announce records the identity and emits a join event when connected
func (m *MockConnection) Announce(identity protocol.IdentityPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.announced = &identity
	if !m.connected {
		return ErrNotConnected
	}
	m.SentEvents = append(m.SentEvents, MockSentEvent{Event: protocol.EventJoin, Payload: identity})
	return nil
}

// Retract clears the announced identity
func (m *MockConnection) Retract() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announced = nil
}

// AnnouncedIdentity returns the last announced identity, nil if none
func (m *MockConnection) AnnouncedIdentity() *protocol.IdentityPayload {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.announced
}

// Send records the event for verification
func (m *MockConnection) Send(event string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if m.sendErr != nil {
		return m.sendErr
	}

	m.SentEvents = append(m.SentEvents, MockSentEvent{Event: event, Payload: payload})
	return nil
}

// Events returns the incoming envelope channel
func (m *MockConnection) Events() <-chan *protocol.Envelope {
	return m.incoming
}

// Errors returns the error channel
func (m *MockConnection) Errors() <-chan error {
	return m.errors
}

// StateChanges returns the state change channel
func (m *MockConnection) StateChanges() <-chan SessionStateUpdate {
	return m.stateChange
}

// Test helpers

// SetConnectError sets an error to return from Connect()
func (m *MockConnection) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSendError sets an error to return from Send()
func (m *MockConnection) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SimulateEvent marshals payload and delivers it as an incoming envelope
func (m *MockConnection) SimulateEvent(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("mock payload marshal: %v", err))
	}
	m.incoming <- &protocol.Envelope{Event: event, Data: data}
}

// SimulateError sends an error to the errors channel
func (m *MockConnection) SimulateError(err error) {
	m.errors <- err
}

// SimulateStateChange sends a state change to the stateChange channel
func (m *MockConnection) SimulateStateChange(state SessionStateUpdate) {
	m.stateChange <- state
}

// GetSentEventCount returns the number of events sent
func (m *MockConnection) GetSentEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentEvents)
}

// GetLastSentEvent returns the last event sent, or error if none
func (m *MockConnection) GetLastSentEvent() (MockSentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.SentEvents) == 0 {
		return MockSentEvent{}, fmt.Errorf("no events sent")
	}

	return m.SentEvents[len(m.SentEvents)-1], nil
}

// SentEventsOf returns every sent event with the given name
func (m *MockConnection) SentEventsOf(event string) []MockSentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MockSentEvent
	for _, sent := range m.SentEvents {
		if sent.Event == event {
			out = append(out, sent)
		}
	}
	return out
}

// ClearSentEvents clears the sent events list
func (m *MockConnection) ClearSentEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEvents = make([]MockSentEvent, 0)
}

var _ ConnectionInterface = (*MockConnection)(nil)
