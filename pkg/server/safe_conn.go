package server

import (
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/solterm/solterm/pkg/protocol"
)

// SafeConn wraps a websocket connection with write synchronization.
//
// Gorilla websockets allow at most one concurrent writer. Under load,
// multiple goroutines (the session's own handler and broadcast fanout from
// other sessions) write to the same connection; SafeConn encapsulates the
// connection and its write mutex so an unsynchronized write is impossible.
type SafeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // Protects writes to conn
}

// NewSafeConn wraps a websocket connection with write synchronization.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteEnvelope encodes and sends one event envelope.
func (sc *SafeConn) WriteEnvelope(event string, payload interface{}) error {
	raw, err := protocol.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	return sc.WriteRaw(raw)
}

// WriteRaw writes a pre-encoded envelope, used by broadcast fanout so the
// envelope is encoded once per event rather than once per recipient.
func (sc *SafeConn) WriteRaw(raw []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn.WriteMessage(websocket.TextMessage, raw)
}

// ReadRaw reads one message off the wire. Reads don't need write
// synchronization.
func (sc *SafeConn) ReadRaw() ([]byte, error) {
	_, raw, err := sc.conn.ReadMessage()
	return raw, err
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	return sc.conn.Close()
}

// RemoteAddr returns the remote network address.
func (sc *SafeConn) RemoteAddr() net.Addr {
	return sc.conn.RemoteAddr()
}
