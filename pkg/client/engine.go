package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/solterm/solterm/pkg/protocol"
)

// Pseudo-topics published on the notification feed alongside channel keys.
const (
	NotifyRoster     = "!roster"
	NotifyChannels   = "!channels"
	NotifyConnection = "!connection"
)

const typingSweepInterval = 500 * time.Millisecond

var (
	ErrNoIdentity   = errors.New("no identity bound")
	ErrEngineClosed = errors.New("engine closed")
)

// Engine is the real-time synchronization core: it owns the single event
// loop through which every mutation flows — transport events, timer
// firings and user actions — so handlers never race each other. External
// consumers only read derived snapshots.
type Engine struct {
	cfg      TOMLConfig
	conn     ConnectionInterface
	backfill BackfillInterface
	state    StateInterface
	wallet   WalletProvider

	store    *MessageStore
	pending  *PendingSendTracker
	presence *PresenceTracker
	emitter  *TypingEmitter
	binder   *IdentityBinder
	metrics  *Metrics
	logger   zerolog.Logger

	commands chan func()
	notify   chan string

	mu            sync.RWMutex
	activeChannel string
	channels      []protocol.ChannelRecord
	voiceChannels []protocol.VoiceChannelRecord
	online        bool

	// inflight tracks the newest outstanding history fetch per channel and
	// collects confirmed pushes that arrive while it is outstanding, so the
	// snapshot cannot overwrite them: they are layered back on top when it
	// lands. Completions from superseded fetches are discarded by gen.
	inflight map[string]*inflightFetch
	fetchGen uint64

	// startupPushed buffers confirmed pushes for every channel while the
	// startup all-channels snapshot is outstanding; replayed on top of it.
	startupPushed   []protocol.MessageRecord
	startupFetching bool

	runCtx   context.Context
	shutdown chan struct{}
	once     sync.Once
}

// inflightFetch is one outstanding history fetch. gen orders overlapping
// fetches for the same channel; pushed holds the confirmed pushes that
// raced the fetch and must survive its snapshot.
type inflightFetch struct {
	gen    uint64
	pushed []protocol.MessageRecord
}

// NewEngine wires the synchronization core around its collaborators. The
// wallet provider may be nil for headless use; identities are then bound
// only through BindWallet.
func NewEngine(cfg TOMLConfig, conn ConnectionInterface, backfill BackfillInterface, state StateInterface, wallet WalletProvider, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:      cfg,
		conn:     conn,
		backfill: backfill,
		state:    state,
		wallet:   wallet,
		metrics:  NewMetrics(),
		logger:   logger.With().Str("component", "engine").Logger(),
		commands: make(chan func(), 64),
		notify:   make(chan string, 64),
		inflight: make(map[string]*inflightFetch),
		shutdown: make(chan struct{}),
	}

	e.store = NewMessageStore(logger, e.metrics)
	e.presence = NewPresenceTracker(cfg.TypingTTL(), logger)
	e.pending = NewPendingSendTracker(cfg.PendingSendTimeout(), func(id string) {
		e.post(func() {
			e.store.ExpirePending(id)
			e.pending.Forget(id)
		})
	})
	e.emitter = NewTypingEmitter(cfg.TypingDebounce(), e.emitTyping)
	e.binder = NewIdentityBinder(e.announceIdentity, e.sessionChanged, logger)

	e.activeChannel = state.GetLastChannel()
	if e.activeChannel == "" {
		e.activeChannel = "general"
	}

	return e
}

// Run processes events until ctx is cancelled. It performs the startup
// sequence (wallet auto-rebind, channel directory, all-channels backfill)
// and then serves the loop. Connect the transport before calling Run.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	defer e.once.Do(func() { close(e.shutdown) })

	e.autoRebind()
	e.startDirectoryLoad(ctx)
	e.startInitialBackfill(ctx)

	var walletCh <-chan string
	if e.wallet != nil {
		walletCh = e.wallet.Changes()
	}

	sweep := time.NewTicker(typingSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fn := <-e.commands:
			fn()

		case env, ok := <-e.conn.Events():
			if !ok {
				return nil
			}
			e.handleEvent(env)

		case upd := <-e.conn.StateChanges():
			e.handleStateChange(upd)

		case err := <-e.conn.Errors():
			if err != nil {
				e.logger.Warn().Err(err).Msg("transport error")
			}

		case addr := <-walletCh:
			e.handleWalletChange(addr)

		case channel := <-e.store.Notifications():
			e.publish(channel)

		case <-sweep.C:
			for _, channel := range e.presence.Sweep() {
				e.publish(channel)
			}
		}
	}
}

// post queues work onto the event loop from timers and async completions.
func (e *Engine) post(fn func()) {
	select {
	case e.commands <- fn:
	case <-e.shutdown:
	}
}

// do runs fn on the event loop and waits for its result.
func (e *Engine) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case e.commands <- func() { errc <- fn() }:
	case <-e.shutdown:
		return ErrEngineClosed
	}
	select {
	case err := <-errc:
		return err
	case <-e.shutdown:
		return ErrEngineClosed
	}
}

// publish pushes a scoped change notification, dropping when the consumer
// lags (it re-reads snapshots anyway).
func (e *Engine) publish(topic string) {
	select {
	case e.notify <- topic:
	default:
	}
}

// Notifications is the engine's change feed: channel keys for timeline
// changes, pseudo-topics for roster/directory/connection changes.
func (e *Engine) Notifications() <-chan string {
	return e.notify
}

// --- startup ---------------------------------------------------------------

// autoRebind restores the previous wallet session unless the user
// explicitly disconnected it.
func (e *Engine) autoRebind() {
	if e.state.GetExplicitDisconnect() {
		e.logger.Debug().Msg("wallet explicitly disconnected, skipping auto-rebind")
		return
	}
	addr := ""
	if e.wallet != nil {
		addr = e.wallet.Address()
	}
	if addr == "" {
		addr = e.state.GetLastWalletAddress()
	}
	if addr != "" {
		e.binder.Bind(addr, protocol.RoleUser)
	}
}

func (e *Engine) startDirectoryLoad(ctx context.Context) {
	go func() {
		channels, err := e.backfill.ListChannels(ctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("channel directory load failed")
		}
		voice, verr := e.backfill.ListVoiceChannels(ctx)
		if verr != nil {
			e.logger.Warn().Err(verr).Msg("voice directory load failed")
		}
		e.post(func() {
			e.mu.Lock()
			if err == nil {
				e.channels = channels
			}
			if verr == nil {
				e.voiceChannels = voice
			}
			e.mu.Unlock()
			e.publish(NotifyChannels)
		})
	}()
}

func (e *Engine) startInitialBackfill(ctx context.Context) {
	e.startupFetching = true
	go func() {
		byChannel, err := e.backfill.FetchAll(ctx, e.cfg.Timeouts.BackfillLimit)
		e.post(func() {
			replay := e.startupPushed
			e.startupPushed = nil
			e.startupFetching = false
			if err != nil {
				e.store.ApplyBackfillError(e.ActiveChannel(), err)
				return
			}
			for channel, records := range byChannel {
				e.store.LoadBackfill(channel, records)
			}
			// Pushes that raced the startup snapshot are layered back on
			// top; duplicates are dropped by id.
			for _, rec := range replay {
				e.applyConfirmed(rec)
			}
		})
	}()
}

// --- event handling --------------------------------------------------------

func (e *Engine) handleEvent(env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventMessageConfirmed:
		var rec protocol.MessageRecord
		if err := env.Bind(&rec); err != nil {
			e.logger.Warn().Err(err).Msg("bad messageConfirmed payload")
			return
		}
		e.applyConfirmed(rec)

	case protocol.EventBroadcastConfirmed:
		var fanout protocol.BroadcastFanout
		if err := env.Bind(&fanout); err != nil {
			e.logger.Warn().Err(err).Msg("bad broadcastConfirmed payload")
			return
		}
		for _, rec := range fanout.Messages {
			rec.IsBroadcast = true
			e.applyConfirmed(rec)
		}

	case protocol.EventIdentityConfirmed:
		var identity protocol.IdentityPayload
		if err := env.Bind(&identity); err != nil {
			e.logger.Warn().Err(err).Msg("bad identityConfirmed payload")
			return
		}
		e.binder.ConfirmRole(identity.Role)

	case protocol.EventUserJoined:
		var user protocol.UserPayload
		if err := env.Bind(&user); err != nil {
			return
		}
		e.presence.OnJoin(PresenceEntry{ID: user.ID, Username: user.Username})
		e.publish(NotifyRoster)

	case protocol.EventUserLeft:
		var user protocol.UserPayload
		if err := env.Bind(&user); err != nil {
			return
		}
		e.presence.OnLeave(user.ID)
		e.publish(NotifyRoster)

	case protocol.EventTypingChanged:
		var typing protocol.TypingPayload
		if err := env.Bind(&typing); err != nil {
			return
		}
		if e.isSelf(typing.Username) {
			return
		}
		e.presence.OnTyping(typing.Channel, typing.UserID, typing.Username, typing.IsTyping)
		e.publish(typing.Channel)

	case protocol.EventSendRejected:
		var reject protocol.RejectPayload
		if err := env.Bind(&reject); err == nil {
			e.logger.Warn().Str("reason", reject.Reason).Msg("send rejected by server")
		}
		e.rollbackPending()

	case protocol.EventChannelCreated:
		var channel protocol.ChannelRecord
		if err := env.Bind(&channel); err != nil {
			return
		}
		e.addChannel(channel)

	case protocol.EventChannelDeleted:
		var deleted protocol.ChannelDeletedPayload
		if err := env.Bind(&deleted); err != nil {
			return
		}
		e.removeChannel(deleted.Name)

	default:
		e.logger.Debug().Str("event", env.Event).Msg("ignoring unknown event")
	}
}

// applyConfirmed runs the reconciliation path for one push-delivered
// message, disarming its pending-send timer when the confirmation matched a
// local echo.
func (e *Engine) applyConfirmed(rec protocol.MessageRecord) {
	if e.startupFetching {
		e.startupPushed = append(e.startupPushed, rec)
	}
	if fetch, tracking := e.inflight[rec.Channel]; tracking {
		fetch.pushed = append(fetch.pushed, rec)
	}
	reconciled := e.store.AppendConfirmed(rec)
	if reconciled != "" {
		e.pending.Confirm(reconciled)
		e.pending.Forget(reconciled)
	}
}

func (e *Engine) rollbackPending() {
	for _, id := range e.pending.RejectAll() {
		e.pending.Forget(id)
	}
	e.store.RejectPending()
}

func (e *Engine) handleStateChange(upd SessionStateUpdate) {
	switch upd.State {
	case SessionDisconnected, SessionReconnecting:
		e.setOnline(false)

	case SessionConnected:
		e.setOnline(true)
		if upd.Attempt > 0 {
			e.metrics.Reconnects.Inc()
			// The session already re-joined; refresh the visible
			// timeline to cover the gap.
			e.startChannelBackfill(e.ActiveChannel())
		}
	}
	e.publish(NotifyConnection)
}

func (e *Engine) setOnline(online bool) {
	e.mu.Lock()
	e.online = online
	e.mu.Unlock()
}

func (e *Engine) handleWalletChange(addr string) {
	if addr == "" {
		e.binder.Unbind()
		return
	}
	// Connecting a wallet always clears the explicit-disconnect flag.
	if err := e.state.SetExplicitDisconnect(false); err != nil {
		e.logger.Warn().Err(err).Msg("failed to clear disconnect flag")
	}
	if err := e.state.SetLastWalletAddress(addr); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist wallet address")
	}
	e.binder.Bind(addr, protocol.RoleUser)
}

// --- identity plumbing -----------------------------------------------------

func (e *Engine) announceIdentity(identity Identity) {
	payload := protocol.IdentityPayload{
		Username:      identity.Username,
		WalletAddress: identity.WalletAddress,
		Role:          identity.Role,
	}
	if err := e.conn.Announce(payload); err != nil {
		e.logger.Warn().Err(err).Msg("identity announce deferred until connected")
	}
}

func (e *Engine) sessionChanged(session *Session) {
	if session == nil {
		e.conn.Retract()
	}
	e.publish(NotifyConnection)
}

func (e *Engine) isSelf(username string) bool {
	session := e.binder.Current()
	return session != nil && session.Identity.Username == username
}

// --- user actions ----------------------------------------------------------

// SendMessage sends text to the active channel: the optimistic echo appears
// immediately, the bounded confirmation wait is armed, and the send goes
// out. Fails fast (with the echo rolled back) when the transport is down.
func (e *Engine) SendMessage(text string) error {
	return e.do(func() error {
		session := e.binder.Current()
		if session == nil {
			return ErrNoIdentity
		}
		channel := e.activeChannel

		msg := e.store.BeginPendingSend(channel, session.Identity, text, false)
		e.pending.Arm(msg.ID)

		payload := protocol.SendPayload{Channel: channel, Text: text, Token: msg.Token}
		if err := e.conn.Send(protocol.EventSendMessage, payload); err != nil {
			e.rollbackPending()
			return err
		}
		e.emitter.Stop()
		return nil
	})
}

// SendBroadcast sends text to every channel at once. Broadcasts carry no
// optimistic echo; each channel's copy arrives via broadcastConfirmed.
func (e *Engine) SendBroadcast(text string) error {
	return e.do(func() error {
		session := e.binder.Current()
		if session == nil {
			return ErrNoIdentity
		}
		if !e.conn.IsConnected() {
			return ErrNotConnected
		}
		if err := e.conn.Send(protocol.EventBroadcastMessage, protocol.BroadcastPayload{Text: text, Token: uuid.NewString()}); err != nil {
			return err
		}
		e.emitter.Stop()
		return nil
	})
}

// SwitchChannel makes a channel active: settles the local typing burst for
// the previous channel, persists the choice and starts a backfill for the
// new channel. Messages already held for other channels are untouched.
func (e *Engine) SwitchChannel(channel string) error {
	return e.do(func() error {
		e.mu.Lock()
		from := e.activeChannel
		if from == channel {
			e.mu.Unlock()
			return nil
		}
		e.activeChannel = channel
		e.mu.Unlock()

		e.emitter.Stop()
		if err := e.state.SetLastChannel(channel); err != nil {
			e.logger.Warn().Err(err).Msg("failed to persist active channel")
		}
		e.startChannelBackfill(channel)
		e.publish(channel)
		return nil
	})
}

// Composing signals one keystroke in the compose box, driving the debounced
// typing announcement for the active channel. No-op without an identity.
func (e *Engine) Composing() {
	if e.binder.Current() == nil {
		return
	}
	e.emitter.Keystroke(e.ActiveChannel())
}

// BindWallet binds an identity for the given wallet address and clears the
// explicit-disconnect flag.
func (e *Engine) BindWallet(address string) error {
	return e.do(func() error {
		if err := e.state.SetExplicitDisconnect(false); err != nil {
			return err
		}
		if err := e.state.SetLastWalletAddress(address); err != nil {
			e.logger.Warn().Err(err).Msg("failed to persist wallet address")
		}
		e.binder.Bind(address, protocol.RoleUser)
		return nil
	})
}

// UnbindWallet destroys the session and records the explicit disconnect so
// the next start does not auto-rebind.
func (e *Engine) UnbindWallet() error {
	return e.do(func() error {
		if err := e.state.SetExplicitDisconnect(true); err != nil {
			return err
		}
		e.emitter.Stop()
		e.binder.Unbind()
		return nil
	})
}

// --- backfill --------------------------------------------------------------

// startChannelBackfill fetches one channel's history. The fetch itself runs
// off-loop; its result is applied on the loop and discarded when the channel
// is no longer active by then.
func (e *Engine) startChannelBackfill(channel string) {
	e.fetchGen++
	gen := e.fetchGen
	e.inflight[channel] = &inflightFetch{gen: gen}
	ctx := e.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		records, err := e.backfill.FetchChannel(ctx, channel, e.cfg.Timeouts.BackfillLimit)
		e.post(func() { e.finishChannelBackfill(gen, channel, records, err) })
	}()
}

func (e *Engine) finishChannelBackfill(gen uint64, channel string, records []protocol.MessageRecord, err error) {
	fetch := e.inflight[channel]
	if fetch == nil || fetch.gen != gen {
		// A newer fetch for this channel owns the push buffer now; only
		// that fetch may consume it and apply a snapshot.
		e.logger.Debug().Str("channel", channel).Msg("discarding superseded backfill result")
		return
	}
	replay := fetch.pushed
	delete(e.inflight, channel)

	if channel != e.activeChannel {
		e.logger.Debug().Str("channel", channel).Msg("discarding stale backfill result")
		return
	}
	if err != nil {
		e.store.ApplyBackfillError(channel, err)
		return
	}
	e.store.LoadBackfill(channel, records)
	// Confirmed pushes that raced the snapshot are layered back on top;
	// duplicates are dropped by id.
	for _, rec := range replay {
		e.applyConfirmed(rec)
	}
}

// --- typing emission -------------------------------------------------------

func (e *Engine) emitTyping(channel string, isTyping bool) {
	if err := e.conn.Send(protocol.EventTyping, protocol.TypingPayload{Channel: channel, IsTyping: isTyping}); err != nil {
		e.logger.Debug().Err(err).Msg("typing event dropped")
		return
	}
	e.metrics.TypingEvents.Inc()
}

// --- snapshots -------------------------------------------------------------

// Messages returns a copy of one channel's timeline.
func (e *Engine) Messages(channel string) []Message {
	return e.store.Snapshot(channel)
}

// TypingIn returns the remote users currently typing in a channel.
func (e *Engine) TypingIn(channel string) []TypingEntry {
	entries := e.presence.TypingUsers(channel)
	out := entries[:0]
	for _, entry := range entries {
		if !e.isSelf(entry.Username) {
			out = append(out, entry)
		}
	}
	return out
}

// Roster returns the online users.
func (e *Engine) Roster() []PresenceEntry {
	return e.presence.Roster()
}

// ActiveChannel returns the currently active channel key.
func (e *Engine) ActiveChannel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeChannel
}

// Channels returns the channel directory.
func (e *Engine) Channels() []protocol.ChannelRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]protocol.ChannelRecord, len(e.channels))
	copy(out, e.channels)
	return out
}

// VoiceChannels returns the voice-channel directory.
func (e *Engine) VoiceChannels() []protocol.VoiceChannelRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]protocol.VoiceChannelRecord, len(e.voiceChannels))
	copy(out, e.voiceChannels)
	return out
}

// Online reports the last known transport state.
func (e *Engine) Online() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.online
}

// Session returns the active identity session, nil when none is bound.
func (e *Engine) Session() *Session {
	return e.binder.Current()
}

// Metrics exposes the engine counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// --- channel directory maintenance ----------------------------------------

func (e *Engine) addChannel(channel protocol.ChannelRecord) {
	e.mu.Lock()
	exists := false
	for _, c := range e.channels {
		if c.Name == channel.Name {
			exists = true
			break
		}
	}
	if !exists {
		e.channels = append(e.channels, channel)
	}
	e.mu.Unlock()

	e.store.EnsureChannel(channel.Name)
	e.publish(NotifyChannels)
}

func (e *Engine) removeChannel(name string) {
	e.mu.Lock()
	kept := e.channels[:0]
	for _, c := range e.channels {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	e.channels = kept
	var fallback string
	if len(e.channels) > 0 {
		fallback = e.channels[0].Name
	} else {
		fallback = "general"
	}
	active := e.activeChannel == name
	e.mu.Unlock()

	e.store.DropChannel(name)
	e.publish(NotifyChannels)

	if active {
		e.mu.Lock()
		e.activeChannel = fallback
		e.mu.Unlock()
		e.startChannelBackfill(fallback)
		e.publish(fallback)
	}
}
