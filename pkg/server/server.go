package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/solterm/solterm/pkg/database"
	"github.com/solterm/solterm/pkg/protocol"
)

// Server is the chat server: one websocket push endpoint for live events and
// a small REST surface for history backfill and the channel directory.
type Server struct {
	db       *database.DB
	sessions *SessionManager
	config   Config
	metrics  *Metrics
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	httpSrv *http.Server
}

// NewServer creates a server around an opened database.
func NewServer(db *database.DB, config Config, logger zerolog.Logger) *Server {
	return &Server{
		db:       db,
		sessions: NewSessionManager(),
		config:   config,
		metrics:  NewMetrics(),
		logger:   logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The TUI client carries no Origin header; browsers are not a
			// supported client.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the full HTTP surface: socket, REST backfill and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/socket", s.handleSocket)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/messages/all", s.handleMessagesAll)
	mux.HandleFunc("/api/channels", s.handleChannels)
	mux.HandleFunc("/api/voice-channels", s.handleVoiceChannels)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	s.logger.Info().Str("addr", addr).Msg("listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Metrics exposes the server counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}

	conn := NewSafeConn(wsConn)
	session := s.sessions.Add(conn)
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ActiveSessions.Inc()
	s.logger.Info().Uint64("session", session.ID).Str("remote", conn.RemoteAddr().String()).Msg("connected")

	defer func() {
		s.disconnect(session)
		conn.Close()
	}()

	for {
		raw, err := conn.ReadRaw()
		if err != nil {
			s.logger.Debug().Uint64("session", session.ID).Err(err).Msg("read ended")
			return
		}
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			s.logger.Warn().Uint64("session", session.ID).Err(err).Msg("dropping malformed envelope")
			continue
		}
		s.dispatch(session, env)
	}
}

func (s *Server) disconnect(session *Session) {
	s.sessions.Remove(session.ID)
	s.metrics.ActiveSessions.Dec()
	s.logger.Info().Uint64("session", session.ID).Msg("disconnected")

	if identity := session.Identity(); identity != nil {
		_ = s.sessions.Broadcast(protocol.EventUserLeft, protocol.UserPayload{
			ID:       session.UserID(),
			Username: identity.Username,
		}, 0)
	}
}

// --- REST backfill ---------------------------------------------------------

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel parameter required", http.StatusBadRequest)
		return
	}
	records, err := s.db.RecentMessages(channel, s.limitParam(r))
	if err != nil {
		s.logger.Error().Err(err).Str("channel", channel).Msg("history query failed")
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []protocol.MessageRecord{}
	}
	s.writeJSON(w, records)
}

func (s *Server) handleMessagesAll(w http.ResponseWriter, r *http.Request) {
	byChannel, err := s.db.RecentMessagesAll(s.limitParam(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, byChannel)
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	channels, err := s.db.Channels()
	if err != nil {
		http.Error(w, "directory query failed", http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []protocol.ChannelRecord{}
	}
	s.writeJSON(w, channels)
}

func (s *Server) handleVoiceChannels(w http.ResponseWriter, _ *http.Request) {
	channels, err := s.db.VoiceChannels()
	if err != nil {
		http.Error(w, "directory query failed", http.StatusInternalServerError)
		return
	}
	if channels == nil {
		channels = []protocol.VoiceChannelRecord{}
	}
	s.writeJSON(w, channels)
}

func (s *Server) limitParam(r *http.Request) int {
	limit := s.config.BackfillLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("response encode failed")
	}
}
