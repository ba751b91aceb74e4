package client

import (
	"sync"
	"time"
)

// PendingState is the lifecycle state of one in-flight optimistic send.
// Armed is the only non-terminal state; a send is disarmed exactly once.
type PendingState int

const (
	PendingUnknown PendingState = iota
	PendingArmed
	PendingConfirmed
	PendingExpired
	PendingRejected
)

func (s PendingState) String() string {
	switch s {
	case PendingArmed:
		return "armed"
	case PendingConfirmed:
		return "confirmed"
	case PendingExpired:
		return "expired"
	case PendingRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type pendingSend struct {
	id    string
	state PendingState
	timer *time.Timer
}

// PendingSendTracker manages the bounded wait attached to each optimistic
// send. Timeout elapse calls the onExpire callback (from the timer
// goroutine); confirmation or rejection cancels the timer. Cancelling an
// already-disarmed timer is a no-op.
type PendingSendTracker struct {
	mu       sync.Mutex
	sends    map[string]*pendingSend
	timeout  time.Duration
	onExpire func(id string)
}

// NewPendingSendTracker creates a tracker with the given wait window.
// onExpire fires at most once per armed id, never after Confirm or Reject.
func NewPendingSendTracker(timeout time.Duration, onExpire func(id string)) *PendingSendTracker {
	return &PendingSendTracker{
		sends:    make(map[string]*pendingSend),
		timeout:  timeout,
		onExpire: onExpire,
	}
}

// Arm starts the bounded wait for a freshly created pending message.
func (t *PendingSendTracker) Arm(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.sends[id]; exists {
		return
	}
	ps := &pendingSend{id: id, state: PendingArmed}
	ps.timer = time.AfterFunc(t.timeout, func() { t.expire(id) })
	t.sends[id] = ps
}

func (t *PendingSendTracker) expire(id string) {
	t.mu.Lock()
	ps, ok := t.sends[id]
	if !ok || ps.state != PendingArmed {
		t.mu.Unlock()
		return
	}
	ps.state = PendingExpired
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(id)
	}
}

// Confirm disarms a send whose confirmation arrived. Returns false if the
// send was unknown or already terminal.
func (t *PendingSendTracker) Confirm(id string) bool {
	return t.disarm(id, PendingConfirmed)
}

// Reject disarms a send the transport explicitly refused.
func (t *PendingSendTracker) Reject(id string) bool {
	return t.disarm(id, PendingRejected)
}

// RejectAll disarms every still-armed send and returns their ids.
func (t *PendingSendTracker) RejectAll() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for id, ps := range t.sends {
		if ps.state != PendingArmed {
			continue
		}
		ps.state = PendingRejected
		ps.timer.Stop()
		ids = append(ids, id)
	}
	return ids
}

func (t *PendingSendTracker) disarm(id string, terminal PendingState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ps, ok := t.sends[id]
	if !ok || ps.state != PendingArmed {
		return false
	}
	ps.state = terminal
	ps.timer.Stop()
	return true
}

// State reports the lifecycle state for an id, PendingUnknown if never armed.
func (t *PendingSendTracker) State(id string) PendingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ps, ok := t.sends[id]; ok {
		return ps.state
	}
	return PendingUnknown
}

// Forget drops bookkeeping for an id once its terminal state has been acted
// on, keeping the map from growing unbounded.
func (t *PendingSendTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ps, ok := t.sends[id]; ok && ps.state != PendingArmed {
		delete(t.sends, id)
	}
}
