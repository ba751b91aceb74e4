package client

import (
	"fmt"
	"time"

	"github.com/solterm/solterm/pkg/protocol"
)

// MessageState tracks where a message is in its lifecycle. A message is in
// exactly one state; Confirmed and Error are terminal.
type MessageState int

const (
	StatePending MessageState = iota
	StateConfirmed
	StateError
	StateBroadcastConfirmed
)

func (s MessageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateError:
		return "error"
	case StateBroadcastConfirmed:
		return "broadcastConfirmed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Identity is the address-derived author identity attached to messages and
// to the bound session.
type Identity struct {
	Username      string
	WalletAddress string
	Role          string
}

// Message is the atomic chat unit held in a channel log.
type Message struct {
	ID          string
	Channel     string
	Author      Identity
	Text        string
	Timestamp   time.Time
	State       MessageState
	IsBroadcast bool

	// Token is the client correlation token carried through the send →
	// confirm round trip. Empty for messages authored elsewhere.
	Token string
}

// IsPending reports whether the message is a local optimistic echo still
// waiting on server confirmation.
func (m Message) IsPending() bool {
	return m.State == StatePending
}

// messageFromRecord converts a confirmed wire record into a Message.
func messageFromRecord(rec protocol.MessageRecord) Message {
	state := StateConfirmed
	if rec.IsBroadcast {
		state = StateBroadcastConfirmed
	}
	role := rec.Role
	if role == "" {
		role = protocol.RoleUser
	}
	return Message{
		ID:      rec.ID,
		Channel: rec.Channel,
		Author: Identity{
			Username:      rec.Username,
			WalletAddress: rec.WalletAddress,
			Role:          role,
		},
		Text:        rec.Text,
		Timestamp:   rec.Timestamp,
		State:       state,
		IsBroadcast: rec.IsBroadcast,
		Token:       rec.Token,
	}
}
