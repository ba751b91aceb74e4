package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/solterm/solterm/pkg/protocol"
)

// Session is one connected client: its websocket plus the identity it
// announced, if any.
type Session struct {
	ID   uint64
	Conn *SafeConn

	mu        sync.Mutex
	identity  *protocol.IdentityPayload
	sendTimes []time.Time
}

// UserID is the wire-visible identifier for presence payloads.
func (s *Session) UserID() string {
	return strconv.FormatUint(s.ID, 10)
}

// SetIdentity binds the announced identity to the session.
func (s *Session) SetIdentity(identity protocol.IdentityPayload) {
	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()
}

// Identity returns the bound identity, nil before a join.
func (s *Session) Identity() *protocol.IdentityPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// AllowSend applies the per-session rate limit: at most limit sends in any
// sliding one-minute window. limit <= 0 disables the check.
func (s *Session) AllowSend(limit int, now time.Time) bool {
	if limit <= 0 {
		return true
	}
	cutoff := now.Add(-time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sendTimes[:0]
	for _, t := range s.sendTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.sendTimes = kept
	if len(s.sendTimes) >= limit {
		return false
	}
	s.sendTimes = append(s.sendTimes, now)
	return true
}

// SessionManager tracks every connected session.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[uint64]*Session)}
}

// Add registers a new session for a connection.
func (m *SessionManager) Add(conn *SafeConn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	session := &Session{ID: m.nextID, Conn: conn}
	m.sessions[session.ID] = session
	return session
}

// Remove drops a session.
func (m *SessionManager) Remove(id uint64) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of connected sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// snapshot returns the current sessions without holding the lock during
// writes.
func (m *SessionManager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast encodes the event once and sends it to every session except the
// given id (0 excludes nobody). Write failures are left for each session's
// own read loop to detect.
func (m *SessionManager) Broadcast(event string, payload interface{}, except uint64) error {
	raw, err := protocol.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	for _, session := range m.snapshot() {
		if session.ID == except {
			continue
		}
		_ = session.Conn.WriteRaw(raw)
	}
	return nil
}
