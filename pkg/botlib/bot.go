package botlib

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solterm/solterm/pkg/client"
	"github.com/solterm/solterm/pkg/protocol"
)

// MessageHandler is called when a new message is received.
type MessageHandler func(ctx *Context, msg *Message)

// Config holds the bot configuration.
type Config struct {
	// SocketURL is the ws:// or wss:// push endpoint.
	SocketURL string

	// Username the bot announces (e.g. "[bot] greeter").
	Username string

	// WalletAddress is optional; bots usually run without one.
	WalletAddress string

	Logger zerolog.Logger
}

// Bot is a headless chat participant: it joins with an identity, watches
// the event stream and can post into any channel. It rides the same
// transport session as the interactive client, reconnects included.
type Bot struct {
	config Config
	conn   *client.TransportSession
	logger zerolog.Logger

	onMessage MessageHandler
	onMention MessageHandler

	stopCh chan struct{}
}

// New creates a bot with the given configuration.
func New(config Config) *Bot {
	return &Bot{
		config: config,
		logger: config.Logger.With().Str("component", "bot").Str("bot", config.Username).Logger(),
		stopCh: make(chan struct{}),
	}
}

// OnMessage registers a handler for every confirmed message.
func (b *Bot) OnMessage(handler MessageHandler) {
	b.onMessage = handler
}

// OnMention registers a handler for messages that mention the bot.
func (b *Bot) OnMention(handler MessageHandler) {
	b.onMention = handler
}

// Run connects, announces the bot identity and processes events until
// Stop is called or the transport closes.
func (b *Bot) Run() error {
	session, err := client.NewTransportSession(b.config.SocketURL, b.logger)
	if err != nil {
		return err
	}
	b.conn = session

	if err := session.Connect(); err != nil {
		return fmt.Errorf("bot connect failed: %w", err)
	}
	if err := session.Announce(protocol.IdentityPayload{
		Username:      b.config.Username,
		WalletAddress: b.config.WalletAddress,
	}); err != nil {
		session.Close()
		return fmt.Errorf("bot announce failed: %w", err)
	}

	b.logger.Info().Str("url", b.config.SocketURL).Msg("bot online")

	defer session.Close()
	for {
		select {
		case <-b.stopCh:
			return nil
		case env, ok := <-session.Events():
			if !ok {
				return nil
			}
			b.handleEvent(env)
		case err := <-session.Errors():
			if err != nil {
				b.logger.Warn().Err(err).Msg("transport error")
			}
		case upd := <-session.StateChanges():
			b.logger.Info().Int("state", int(upd.State)).Int("attempt", upd.Attempt).Msg("connection state")
		}
	}
}

// Stop ends the Run loop.
func (b *Bot) Stop() {
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
}

// SendMessage posts text into a channel.
func (b *Bot) SendMessage(channel, text string) error {
	return b.conn.Send(protocol.EventSendMessage, protocol.SendPayload{
		Channel: channel,
		Text:    text,
		Token:   uuid.NewString(),
	})
}

// Typing announces a typing transition in a channel.
func (b *Bot) Typing(channel string, isTyping bool) error {
	return b.conn.Send(protocol.EventTyping, protocol.TypingPayload{
		Channel:  channel,
		IsTyping: isTyping,
	})
}

func (b *Bot) handleEvent(env *protocol.Envelope) {
	if env.Event != protocol.EventMessageConfirmed {
		return
	}
	var rec protocol.MessageRecord
	if err := env.Bind(&rec); err != nil {
		b.logger.Warn().Err(err).Msg("bad message payload")
		return
	}
	// The bot's own messages come back through the fanout too.
	if rec.Username == b.config.Username {
		return
	}

	msg := fromRecord(rec)
	ctx := &Context{bot: b, msg: msg}

	if b.onMention != nil && msg.Mentions(b.config.Username) {
		b.onMention(ctx, msg)
		return
	}
	if b.onMessage != nil {
		b.onMessage(ctx, msg)
	}
}

// WaitUntilConnected polls until the transport reports connected, for
// scripts that need the bot live before driving traffic.
func (b *Bot) WaitUntilConnected(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.conn != nil && b.conn.IsConnected() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
