package server

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solterm/solterm/pkg/protocol"
)

func (s *Server) dispatch(session *Session, env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoin:
		s.handleJoin(session, env)
	case protocol.EventSendMessage:
		s.handleSendMessage(session, env)
	case protocol.EventBroadcastMessage:
		s.handleBroadcastMessage(session, env)
	case protocol.EventTyping:
		s.handleTyping(session, env)
	default:
		s.logger.Debug().Uint64("session", session.ID).Str("event", env.Event).Msg("ignoring unknown event")
	}
}

// handleJoin binds the announced identity, confirms it back to the sender
// with its server-assigned role, and tells everyone else the user is here.
func (s *Server) handleJoin(session *Session, env *protocol.Envelope) {
	var identity protocol.IdentityPayload
	if err := env.Bind(&identity); err != nil {
		s.logger.Warn().Uint64("session", session.ID).Err(err).Msg("bad join payload")
		return
	}
	if identity.Username == "" {
		s.reject(session, "username required", "")
		return
	}

	identity.Role = s.resolveRole(identity.WalletAddress)
	session.SetIdentity(identity)
	s.logger.Info().Uint64("session", session.ID).Str("user", identity.Username).Str("role", identity.Role).Msg("joined")

	if err := session.Conn.WriteEnvelope(protocol.EventIdentityConfirmed, identity); err != nil {
		s.logger.Warn().Uint64("session", session.ID).Err(err).Msg("identity confirm failed")
		return
	}
	_ = s.sessions.Broadcast(protocol.EventUserJoined, protocol.UserPayload{
		ID:       session.UserID(),
		Username: identity.Username,
	}, session.ID)
}

func (s *Server) resolveRole(walletAddress string) string {
	for _, admin := range s.config.AdminWallets {
		if admin == walletAddress {
			return protocol.RoleAdmin
		}
	}
	role, err := s.db.UserRole(walletAddress)
	if err != nil {
		s.logger.Warn().Err(err).Msg("role lookup failed")
		return protocol.RoleUser
	}
	return role
}

// handleSendMessage validates, persists and fans out one channel message.
// The confirmation goes to every session, the sender included: the sender's
// copy is what reconciles its optimistic echo.
func (s *Server) handleSendMessage(session *Session, env *protocol.Envelope) {
	var payload protocol.SendPayload
	if err := env.Bind(&payload); err != nil {
		s.logger.Warn().Uint64("session", session.ID).Err(err).Msg("bad send payload")
		return
	}

	identity := session.Identity()
	if reason := s.validateSend(session, identity, payload.Channel, payload.Text); reason != "" {
		s.reject(session, reason, payload.Token)
		return
	}

	rec := protocol.MessageRecord{
		ID:            uuid.NewString(),
		Channel:       payload.Channel,
		Username:      identity.Username,
		WalletAddress: identity.WalletAddress,
		Role:          identity.Role,
		Text:          payload.Text,
		Timestamp:     time.Now().UTC(),
		Token:         payload.Token,
	}
	if err := s.db.SaveMessage(rec); err != nil {
		s.logger.Error().Err(err).Msg("message persist failed")
		s.reject(session, "message could not be stored", payload.Token)
		return
	}

	s.metrics.MessagesTotal.Inc()
	_ = s.sessions.Broadcast(protocol.EventMessageConfirmed, rec, 0)
}

// handleBroadcastMessage fans one admin message out into every channel.
func (s *Server) handleBroadcastMessage(session *Session, env *protocol.Envelope) {
	var payload protocol.BroadcastPayload
	if err := env.Bind(&payload); err != nil {
		s.logger.Warn().Uint64("session", session.ID).Err(err).Msg("bad broadcast payload")
		return
	}

	identity := session.Identity()
	if reason := s.validateSend(session, identity, "*", payload.Text); reason != "" {
		s.reject(session, reason, payload.Token)
		return
	}
	if identity.Role != protocol.RoleAdmin && identity.Role != protocol.RoleDeveloper {
		s.reject(session, "broadcast requires an elevated role", payload.Token)
		return
	}

	channels, err := s.db.Channels()
	if err != nil {
		s.logger.Error().Err(err).Msg("directory query failed")
		s.reject(session, "broadcast could not be delivered", payload.Token)
		return
	}

	now := time.Now().UTC()
	fanout := protocol.BroadcastFanout{Messages: make([]protocol.MessageRecord, 0, len(channels))}
	for _, ch := range channels {
		rec := protocol.MessageRecord{
			ID:            uuid.NewString(),
			Channel:       ch.Name,
			Username:      identity.Username,
			WalletAddress: identity.WalletAddress,
			Role:          identity.Role,
			Text:          payload.Text,
			Timestamp:     now,
			IsBroadcast:   true,
			Token:         payload.Token,
		}
		if err := s.db.SaveMessage(rec); err != nil {
			s.logger.Error().Err(err).Str("channel", ch.Name).Msg("broadcast persist failed")
			continue
		}
		fanout.Messages = append(fanout.Messages, rec)
	}

	s.metrics.BroadcastsTotal.Inc()
	_ = s.sessions.Broadcast(protocol.EventBroadcastConfirmed, fanout, 0)
}

// handleTyping relays a typing transition to everyone but its author.
func (s *Server) handleTyping(session *Session, env *protocol.Envelope) {
	var payload protocol.TypingPayload
	if err := env.Bind(&payload); err != nil {
		return
	}
	identity := session.Identity()
	if identity == nil || payload.Channel == "" {
		return
	}

	_ = s.sessions.Broadcast(protocol.EventTypingChanged, protocol.TypingPayload{
		Channel:  payload.Channel,
		UserID:   session.UserID(),
		Username: identity.Username,
		IsTyping: payload.IsTyping,
	}, session.ID)
}

// validateSend returns a rejection reason, or "" when the send is allowed.
func (s *Server) validateSend(session *Session, identity *protocol.IdentityPayload, channel, text string) string {
	if identity == nil {
		return "identity required before sending"
	}
	if channel == "" {
		return "channel required"
	}
	if strings.TrimSpace(text) == "" {
		return "message is empty"
	}
	if s.config.MaxMessageLength > 0 && len(text) > s.config.MaxMessageLength {
		return "message too long"
	}
	if !session.AllowSend(s.config.MessageRateLimit, time.Now()) {
		return "rate limit exceeded"
	}
	return ""
}

func (s *Server) reject(session *Session, reason, token string) {
	s.metrics.RejectionsTotal.Inc()
	s.logger.Info().Uint64("session", session.ID).Str("reason", reason).Msg("send rejected")
	_ = session.Conn.WriteEnvelope(protocol.EventSendRejected, protocol.RejectPayload{
		Reason: reason,
		Token:  token,
	})
}
