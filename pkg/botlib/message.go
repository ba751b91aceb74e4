package botlib

import (
	"strings"
	"time"

	"github.com/solterm/solterm/pkg/protocol"
)

// Message is the bot-facing view of one confirmed chat message.
type Message struct {
	ID        string
	Channel   string
	Author    string
	Text      string
	Timestamp time.Time
	Broadcast bool
}

func fromRecord(rec protocol.MessageRecord) *Message {
	return &Message{
		ID:        rec.ID,
		Channel:   rec.Channel,
		Author:    rec.Username,
		Text:      rec.Text,
		Timestamp: rec.Timestamp,
		Broadcast: rec.IsBroadcast,
	}
}

// Mentions reports whether the message addresses the given username,
// matched case-insensitively with or without a leading @.
func (m *Message) Mentions(username string) bool {
	if username == "" {
		return false
	}
	text := strings.ToLower(m.Text)
	name := strings.ToLower(username)
	return strings.Contains(text, "@"+name) || strings.Contains(text, name)
}
