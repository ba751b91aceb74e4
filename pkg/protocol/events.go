package protocol

import "time"

// Event names (Server → Client)
const (
	EventIdentityConfirmed  = "identityConfirmed"
	EventMessageConfirmed   = "messageConfirmed"
	EventBroadcastConfirmed = "broadcastConfirmed"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventTypingChanged      = "typingChanged"
	EventSendRejected       = "sendRejected"
	EventChannelCreated     = "channelCreated"
	EventChannelDeleted     = "channelDeleted"
)

// Event names (Client → Server)
const (
	EventJoin             = "join"
	EventSendMessage      = "sendMessage"
	EventBroadcastMessage = "broadcastMessage"
	EventTyping           = "typing"
)

// Role constants for confirmed identities
const (
	RoleUser      = "user"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
)

// MessageRecord is a server-confirmed chat message. The same shape is used
// by the REST backfill endpoints and by messageConfirmed/broadcastConfirmed
// push events.
type MessageRecord struct {
	ID            string    `json:"id"`
	Channel       string    `json:"channel"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Role          string    `json:"role,omitempty"`
	Text          string    `json:"text"`
	Timestamp     time.Time `json:"timestamp"`
	IsBroadcast   bool      `json:"isBroadcast,omitempty"`
	// Token echoes the client correlation token from sendMessage, when the
	// server supports it. Reconciliation falls back to content matching
	// when empty.
	Token string `json:"token,omitempty"`
}

// BroadcastFanout carries one confirmed copy of a broadcast message per
// channel it was fanned out to.
type BroadcastFanout struct {
	Messages []MessageRecord `json:"messages"`
}

// IdentityPayload announces the local identity on join, and comes back on
// identityConfirmed with the server-assigned role.
type IdentityPayload struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Role          string `json:"role,omitempty"`
}

// UserPayload identifies a roster member for userJoined/userLeft.
type UserPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TypingPayload reports a remote user's typing state for one channel
// (typingChanged), or announces the local user's own state (typing).
type TypingPayload struct {
	Channel  string `json:"channel"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// SendPayload is an outbound sendMessage request.
type SendPayload struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	Token   string `json:"token,omitempty"`
}

// BroadcastPayload is an outbound broadcastMessage request. Broadcasts have
// no channel; the server fans them out to every channel.
type BroadcastPayload struct {
	Text  string `json:"text"`
	Token string `json:"token,omitempty"`
}

// RejectPayload explains a refused send. Token is best-effort; the server
// does not guarantee per-send correlation on rejection.
type RejectPayload struct {
	Reason string `json:"reason"`
	Token  string `json:"token,omitempty"`
}

// ChannelRecord describes one channel, from the REST directory or from the
// channelCreated event.
type ChannelRecord struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ChannelDeletedPayload names a removed channel.
type ChannelDeletedPayload struct {
	Name string `json:"name"`
}

// VoiceChannelRecord describes one voice channel from the REST directory.
// Voice calling itself is not implemented; these are directory entries only.
type VoiceChannelRecord struct {
	ID               string `json:"_id,omitempty"`
	Name             string `json:"name"`
	ParticipantCount int    `json:"participantCount"`
}
