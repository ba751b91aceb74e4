package client

import (
	"sync"
	"time"
)

// TypingEmitter debounces the local user's typing announcements. A burst of
// keystrokes produces one isTyping=true at its start and exactly one
// isTyping=false when the burst settles, the message is sent, or the channel
// changes, whichever happens first.
type TypingEmitter struct {
	mu       sync.Mutex
	debounce time.Duration
	emit     func(channel string, isTyping bool)

	active  bool
	channel string
	timer   *time.Timer
}

// NewTypingEmitter creates an emitter. emit may run on a timer goroutine and
// must not call back into the emitter.
func NewTypingEmitter(debounce time.Duration, emit func(channel string, isTyping bool)) *TypingEmitter {
	return &TypingEmitter{
		debounce: debounce,
		emit:     emit,
	}
}

// Keystroke re-arms the debounce for an edit burst in the given channel.
// The first keystroke of a burst announces isTyping=true; later keystrokes
// only push the settle timer out.
func (e *TypingEmitter) Keystroke(channel string) {
	e.mu.Lock()
	if e.active && e.channel != channel {
		// Compose box moved channels mid-burst; settle the old one first.
		e.stopLocked()
	}
	first := !e.active
	if first {
		e.active = true
		e.channel = channel
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.settle)
	e.mu.Unlock()

	if first {
		e.emit(channel, true)
	}
}

func (e *TypingEmitter) settle() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	channel := e.channel
	e.active = false
	e.mu.Unlock()

	e.emit(channel, false)
}

// Stop settles the current burst immediately: called on send and on channel
// switch. No-op when no burst is active.
func (e *TypingEmitter) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.stopLocked()
	e.mu.Unlock()
}

// stopLocked cancels the timer and emits the single isTyping=false for the
// active burst. Caller holds e.mu; the emit itself happens synchronously,
// which is safe because emit must not call back into the emitter.
func (e *TypingEmitter) stopLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	channel := e.channel
	e.active = false
	e.emit(channel, false)
}
