package client

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/solterm/solterm/pkg/protocol"
)

// SessionStateType represents the push-connection status.
type SessionStateType int

const (
	SessionConnected SessionStateType = iota
	SessionDisconnected
	SessionReconnecting
)

// SessionStateUpdate represents a connection state change.
type SessionStateUpdate struct {
	State   SessionStateType
	Attempt int
	// Reannounced reports whether the bound identity was re-joined as part
	// of a restored connection.
	Reannounced bool
	Err         error
}

var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrSessionClosed    = errors.New("transport session closed")
	ErrOutgoingFull     = errors.New("outgoing queue full")
	ErrAlreadyConnected = errors.New("already connected")
)

// TransportSession wraps one persistent websocket push-connection. It owns
// reconnect detection: on an unexpected drop it backs off exponentially, and
// after a successful reconnect it re-announces the bound identity before
// reporting the connection restored. Sends while disconnected fail fast.
type TransportSession struct {
	url    string
	dialer *websocket.Dialer

	mu           sync.RWMutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	closed       bool
	identity     *protocol.IdentityPayload

	incoming    chan *protocol.Envelope
	outgoing    chan []byte
	errs        chan error
	stateChange chan SessionStateUpdate

	autoReconnect     bool
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	logger   zerolog.Logger
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewTransportSession creates a session for the given ws:// or wss:// URL.
func NewTransportSession(rawURL string, logger zerolog.Logger) (*TransportSession, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket URL %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported socket scheme %q", u.Scheme)
	}

	return &TransportSession{
		url:               rawURL,
		dialer:            &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		incoming:          make(chan *protocol.Envelope, 100),
		outgoing:          make(chan []byte, 100),
		errs:              make(chan error, 10),
		stateChange:       make(chan SessionStateUpdate, 10),
		autoReconnect:     true,
		reconnectDelay:    1 * time.Second,
		maxReconnectDelay: 30 * time.Second,
		logger:            logger.With().Str("component", "transport").Logger(),
		shutdown:          make(chan struct{}),
	}, nil
}

// SetReconnectPolicy overrides the backoff bounds.
func (s *TransportSession) SetReconnectPolicy(initial, max time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectDelay = initial
	s.maxReconnectDelay = max
}

// DisableAutoReconnect disables automatic reconnection on connection loss.
func (s *TransportSession) DisableAutoReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoReconnect = false
}

// Connect establishes the websocket connection and starts the read and
// write pumps.
func (s *TransportSession) Connect() error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	s.logger.Debug().Str("url", s.url).Msg("connecting")

	conn, _, err := s.dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.logger.Info().Str("url", s.url).Msg("connected")

	s.wg.Add(2)
	go s.readLoop(conn)
	go s.writeLoop(conn)

	return nil
}

// Announce binds an identity to the session and joins immediately when
// connected. The session remembers it for re-announcement after reconnects.
func (s *TransportSession) Announce(identity protocol.IdentityPayload) error {
	s.mu.Lock()
	s.identity = &identity
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	return s.Send(protocol.EventJoin, identity)
}

// Retract forgets the bound identity; the next reconnect joins nothing.
func (s *TransportSession) Retract() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()
}

// Send encodes and queues an event. Fails fast when the connection is down
// or the session is closed; nothing is queued for later delivery.
func (s *TransportSession) Send(event string, payload interface{}) error {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	raw, err := protocol.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	select {
	case s.outgoing <- raw:
		return nil
	case <-s.shutdown:
		return ErrSessionClosed
	default:
		return ErrOutgoingFull
	}
}

// Events returns the stream of decoded push events. Per-channel ordering
// follows the order the server accepted them.
func (s *TransportSession) Events() <-chan *protocol.Envelope {
	return s.incoming
}

// Errors returns the stream of connection errors.
func (s *TransportSession) Errors() <-chan error {
	return s.errs
}

// StateChanges returns the stream of connection state updates.
func (s *TransportSession) StateChanges() <-chan SessionStateUpdate {
	return s.stateChange
}

// IsConnected returns whether the connection is active.
func (s *TransportSession) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Close shuts the session down permanently.
func (s *TransportSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	close(s.shutdown)
	if conn != nil {
		conn.Close()
	}
	s.wg.Wait()
	close(s.incoming)
	close(s.errs)
	close(s.stateChange)
	s.logger.Debug().Msg("session closed")
}

func (s *TransportSession) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.shutdown:
			default:
				s.logger.Warn().Err(err).Msg("read failed")
				s.handleDisconnect(err)
			}
			return
		}

		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping malformed envelope")
			select {
			case s.errs <- err:
			default:
			}
			continue
		}

		s.logger.Debug().Str("event", env.Event).Int("bytes", len(raw)).Msg("recv")

		select {
		case s.incoming <- env:
		case <-s.shutdown:
			return
		}
	}
}

func (s *TransportSession) writeLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		select {
		case raw := <-s.outgoing:
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				s.logger.Warn().Err(err).Msg("write failed")
				select {
				case s.errs <- fmt.Errorf("write error: %w", err):
				default:
				}
				s.handleDisconnect(err)
				return
			}
			s.logger.Debug().Int("bytes", len(raw)).Msg("send")

		case <-s.shutdown:
			return
		}
	}
}

func (s *TransportSession) handleDisconnect(cause error) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	auto := s.autoReconnect && !s.closed
	s.mu.Unlock()

	if !wasConnected {
		return
	}

	s.logger.Warn().Err(cause).Msg("connection lost")
	select {
	case s.stateChange <- SessionStateUpdate{State: SessionDisconnected, Err: cause}:
	default:
	}

	if auto {
		// Add before the calling pump returns so the counter never hits
		// zero while the reconnect goroutine is being spawned.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.reconnectLoop()
		}()
	}
}

// reconnectLoop retries with exponential backoff. On success it re-announces
// the bound identity before reporting SessionConnected, so the restored
// connection is valid for sends the moment observers hear about it.
func (s *TransportSession) reconnectLoop() {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	delay := s.reconnectDelay
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	attempt := 1
	for {
		select {
		case <-s.shutdown:
			return
		case <-time.After(delay):
			s.logger.Debug().Int("attempt", attempt).Msg("reconnect attempt")
			select {
			case s.stateChange <- SessionStateUpdate{State: SessionReconnecting, Attempt: attempt}:
			default:
			}

			if err := s.Connect(); err != nil {
				delay *= 2
				s.mu.RLock()
				if delay > s.maxReconnectDelay {
					delay = s.maxReconnectDelay
				}
				s.mu.RUnlock()
				attempt++
				continue
			}

			reannounced := s.reannounceIdentity()
			s.logger.Info().Int("attempts", attempt).Bool("reannounced", reannounced).Msg("reconnected")
			select {
			case s.stateChange <- SessionStateUpdate{State: SessionConnected, Attempt: attempt, Reannounced: reannounced}:
			default:
			}
			return
		}
	}
}

func (s *TransportSession) reannounceIdentity() bool {
	s.mu.RLock()
	identity := s.identity
	s.mu.RUnlock()
	if identity == nil {
		return false
	}
	if err := s.Send(protocol.EventJoin, *identity); err != nil {
		s.logger.Warn().Err(err).Msg("identity re-announce failed")
		return false
	}
	return true
}
