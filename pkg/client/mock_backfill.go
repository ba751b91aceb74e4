package client

import (
	"context"
	"sync"

	"github.com/solterm/solterm/pkg/protocol"
)

// MockBackfill is a test implementation of BackfillInterface
type MockBackfill struct {
	mu sync.RWMutex

	// Canned responses. channelHistory feeds FetchChannel only; allHistory
	// feeds FetchAll only, so tests can can the two paths independently.
	channelHistory map[string][]protocol.MessageRecord
	allHistory     map[string][]protocol.MessageRecord
	channels       []protocol.ChannelRecord
	voiceChannels  []protocol.VoiceChannelRecord

	// Errors to return
	fetchErr map[string]error
	allErr   error
	listErr  error

	// Recorded calls
	FetchedChannels []string
	FetchAllCalls   int

	// Optional gates: when set, the fetch blocks until the gate is closed
	gate    chan struct{}
	gateAll chan struct{}
}

// NewMockBackfill creates a new mock backfill client
func NewMockBackfill() *MockBackfill {
	return &MockBackfill{
		channelHistory: make(map[string][]protocol.MessageRecord),
		allHistory:     make(map[string][]protocol.MessageRecord),
		fetchErr:       make(map[string]error),
	}
}

// SetChannelHistory sets the records returned by FetchChannel for a channel
func (m *MockBackfill) SetChannelHistory(channel string, records []protocol.MessageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelHistory[channel] = records
}

// SetAllHistory sets the records returned by FetchAll for a channel
func (m *MockBackfill) SetAllHistory(channel string, records []protocol.MessageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allHistory[channel] = records
}

// SetChannels sets the channel directory response
func (m *MockBackfill) SetChannels(channels []protocol.ChannelRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = channels
}

// SetVoiceChannels sets the voice directory response
func (m *MockBackfill) SetVoiceChannels(channels []protocol.VoiceChannelRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceChannels = channels
}

// SetFetchError sets an error to return for one channel
func (m *MockBackfill) SetFetchError(channel string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr[channel] = err
}

// SetFetchAllError sets an error to return from FetchAll
func (m *MockBackfill) SetFetchAllError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allErr = err
}

// Gate makes FetchChannel block until Release is called
func (m *MockBackfill) Gate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks a gated FetchChannel
func (m *MockBackfill) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// ChannelFetchCount returns how many FetchChannel calls a channel received
func (m *MockBackfill) ChannelFetchCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, fetched := range m.FetchedChannels {
		if fetched == channel {
			count++
		}
	}
	return count
}

// GateAll makes FetchAll block until ReleaseAll is called
func (m *MockBackfill) GateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gateAll = make(chan struct{})
}

// ReleaseAll unblocks a gated FetchAll
func (m *MockBackfill) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gateAll != nil {
		close(m.gateAll)
		m.gateAll = nil
	}
}

// FetchChannel returns the canned history for a channel
func (m *MockBackfill) FetchChannel(ctx context.Context, channel string, limit int) ([]protocol.MessageRecord, error) {
	m.mu.Lock()
	m.FetchedChannels = append(m.FetchedChannels, channel)
	gate := m.gate
	err := m.fetchErr[channel]
	records := m.channelHistory[channel]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FetchAll returns the full canned history
func (m *MockBackfill) FetchAll(ctx context.Context, limit int) (map[string][]protocol.MessageRecord, error) {
	m.mu.Lock()
	m.FetchAllCalls++
	gate := m.gateAll
	err := m.allErr
	out := make(map[string][]protocol.MessageRecord, len(m.allHistory))
	for channel, records := range m.allHistory {
		out[channel] = records
	}
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListChannels returns the canned channel directory
func (m *MockBackfill) ListChannels(ctx context.Context) ([]protocol.ChannelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.channels, nil
}

// ListVoiceChannels returns the canned voice directory
func (m *MockBackfill) ListVoiceChannels(ctx context.Context) ([]protocol.VoiceChannelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voiceChannels, nil
}

var _ BackfillInterface = (*MockBackfill)(nil)
