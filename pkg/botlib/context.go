package botlib

import (
	"github.com/solterm/solterm/pkg/protocol"
)

// Context is passed to handlers and carries reply helpers bound to the
// triggering message.
type Context struct {
	bot *Bot
	msg *Message
}

// Message returns the message that triggered the handler.
func (c *Context) Message() *Message {
	return c.msg
}

// Reply sends text into the channel the triggering message arrived in.
func (c *Context) Reply(text string) error {
	return c.bot.SendMessage(c.msg.Channel, text)
}

// ReplyTyping announces a typing transition in the triggering channel,
// useful before a slow handler posts its answer.
func (c *Context) ReplyTyping(isTyping bool) error {
	return c.bot.conn.Send(protocol.EventTyping, protocol.TypingPayload{
		Channel:  c.msg.Channel,
		IsTyping: isTyping,
	})
}
