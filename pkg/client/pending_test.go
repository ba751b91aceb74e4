package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTrackerConfirm(t *testing.T) {
	tracker := NewPendingSendTracker(time.Minute, nil)

	tracker.Arm("p1")
	assert.Equal(t, PendingArmed, tracker.State("p1"))

	assert.True(t, tracker.Confirm("p1"))
	assert.Equal(t, PendingConfirmed, tracker.State("p1"))

	// Disarming is exactly-once.
	assert.False(t, tracker.Confirm("p1"))
	assert.False(t, tracker.Reject("p1"))
}

func TestPendingTrackerUnknownID(t *testing.T) {
	tracker := NewPendingSendTracker(time.Minute, nil)

	assert.False(t, tracker.Confirm("missing"))
	assert.Equal(t, PendingUnknown, tracker.State("missing"))
}

func TestPendingTrackerExpiry(t *testing.T) {
	expired := make(chan string, 1)
	tracker := NewPendingSendTracker(10*time.Millisecond, func(id string) {
		expired <- id
	})

	tracker.Arm("p1")

	select {
	case id := <-expired:
		assert.Equal(t, "p1", id)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}
	assert.Equal(t, PendingExpired, tracker.State("p1"))
}

func TestPendingTrackerConfirmStopsTimer(t *testing.T) {
	var mu sync.Mutex
	fired := false
	tracker := NewPendingSendTracker(20*time.Millisecond, func(string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	tracker.Arm("p1")
	require.True(t, tracker.Confirm("p1"))

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired, "onExpire must not fire after Confirm")
}

func TestPendingTrackerRejectAll(t *testing.T) {
	tracker := NewPendingSendTracker(time.Minute, nil)

	tracker.Arm("p1")
	tracker.Arm("p2")
	tracker.Arm("p3")
	tracker.Confirm("p2")

	ids := tracker.RejectAll()
	assert.ElementsMatch(t, []string{"p1", "p3"}, ids)
	assert.Equal(t, PendingRejected, tracker.State("p1"))
	assert.Equal(t, PendingConfirmed, tracker.State("p2"))
}

func TestPendingTrackerForget(t *testing.T) {
	tracker := NewPendingSendTracker(time.Minute, nil)

	tracker.Arm("p1")

	// Armed sends cannot be forgotten out from under their timer.
	tracker.Forget("p1")
	assert.Equal(t, PendingArmed, tracker.State("p1"))

	tracker.Confirm("p1")
	tracker.Forget("p1")
	assert.Equal(t, PendingUnknown, tracker.State("p1"))
}
