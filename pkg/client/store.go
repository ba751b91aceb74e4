package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/solterm/solterm/pkg/protocol"
)

const systemAuthor = "System"

// MessageStore owns the channel-partitioned message logs and the
// reconciliation rules that merge backfill results, optimistic local echoes
// and push confirmations into one deduplicated sequence per channel.
//
// Every mutation emits a change notification scoped to the affected channel
// so a view layer can re-render only that channel's timeline.
type MessageStore struct {
	mu     sync.RWMutex
	logs   map[string][]Message
	notify chan string

	logger  zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewMessageStore creates an empty store.
func NewMessageStore(logger zerolog.Logger, metrics *Metrics) *MessageStore {
	return &MessageStore{
		logs:    make(map[string][]Message),
		notify:  make(chan string, 64),
		logger:  logger.With().Str("component", "store").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Notifications returns the channel-scoped change feed. Entries are channel
// keys; consumers re-read Snapshot for the named channel. Sends never block:
// if the consumer lags, notifications for it are dropped and the next
// snapshot read catches up.
func (s *MessageStore) Notifications() <-chan string {
	return s.notify
}

func (s *MessageStore) notifyChannel(channel string) {
	select {
	case s.notify <- channel:
	default:
	}
}

// Snapshot returns a copy of one channel's log in render order.
func (s *MessageStore) Snapshot(channel string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[channel]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Channels returns the keys of every channel currently holding messages.
func (s *MessageStore) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.logs))
	for ch := range s.logs {
		out = append(out, ch)
	}
	return out
}

// EnsureChannel makes an empty log exist for a newly created channel.
func (s *MessageStore) EnsureChannel(channel string) {
	s.mu.Lock()
	if _, ok := s.logs[channel]; !ok {
		s.logs[channel] = nil
	}
	s.mu.Unlock()
	s.notifyChannel(channel)
}

// DropChannel discards a deleted channel's log entirely.
func (s *MessageStore) DropChannel(channel string) {
	s.mu.Lock()
	delete(s.logs, channel)
	s.mu.Unlock()
	s.notifyChannel(channel)
}

// LoadBackfill replaces all non-pending messages for a channel with the
// given confirmed set. Pending messages already in flight for the channel
// are preserved and re-merged into the sequence by timestamp. Any error
// placeholder for the channel is cleared; other channels are untouched.
func (s *MessageStore) LoadBackfill(channel string, records []protocol.MessageRecord) {
	confirmed := make([]Message, 0, len(records))
	for _, rec := range records {
		if rec.Channel == "" {
			rec.Channel = channel
		}
		confirmed = append(confirmed, messageFromRecord(rec))
	}

	s.mu.Lock()
	var pendings []Message
	for _, m := range s.logs[channel] {
		if m.IsPending() {
			pendings = append(pendings, m)
		}
	}
	s.logs[channel] = mergePendings(confirmed, pendings)
	s.mu.Unlock()

	s.logger.Debug().Str("channel", channel).Int("confirmed", len(confirmed)).Int("pending", len(pendings)).Msg("backfill applied")
	s.notifyChannel(channel)
}

// mergePendings weaves still-pending messages into a confirmed sequence by
// timestamp, keeping the confirmed order untouched.
func mergePendings(confirmed, pendings []Message) []Message {
	if len(pendings) == 0 {
		return confirmed
	}
	out := make([]Message, 0, len(confirmed)+len(pendings))
	pi := 0
	for _, c := range confirmed {
		for pi < len(pendings) && pendings[pi].Timestamp.Before(c.Timestamp) {
			out = append(out, pendings[pi])
			pi++
		}
		out = append(out, c)
	}
	out = append(out, pendings[pi:]...)
	return out
}

// ApplyBackfillError records a failed load as a channel-scoped synthetic
// error message, so the user sees why the channel appears empty. Pending
// messages survive; the previous contents of the channel and any earlier
// error placeholder do not.
func (s *MessageStore) ApplyBackfillError(channel string, cause error) {
	placeholder := Message{
		ID:        fmt.Sprintf("error-%s-%d", channel, s.now().UnixMilli()),
		Channel:   channel,
		Author:    Identity{Username: systemAuthor},
		Text:      fmt.Sprintf("Failed to load messages for #%s. Please try again.", channel),
		Timestamp: s.now(),
		State:     StateError,
	}

	s.mu.Lock()
	var kept []Message
	for _, m := range s.logs[channel] {
		if m.IsPending() {
			kept = append(kept, m)
		}
	}
	s.logs[channel] = append(kept, placeholder)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.BackfillFailures.Inc()
	}
	s.logger.Warn().Str("channel", channel).Err(cause).Msg("backfill failed, placeholder inserted")
	s.notifyChannel(channel)
}

// AppendConfirmed is the reconciliation entry point for any push-delivered
// message. A matching pending message is replaced in place, preserving its
// list position; otherwise the confirmed message is appended. Matching
// prefers the correlation token; without one it falls back to the earliest
// still-pending message with the same author and text (FIFO).
//
// Returns the id of the pending message that was reconciled, or "" if the
// message was appended (or dropped as a duplicate).
func (s *MessageStore) AppendConfirmed(rec protocol.MessageRecord) string {
	msg := messageFromRecord(rec)

	s.mu.Lock()
	log := s.logs[msg.Channel]

	// A confirmed id never appears twice in one channel log.
	for _, m := range log {
		if !m.IsPending() && m.State != StateError && m.ID == msg.ID {
			s.mu.Unlock()
			s.logger.Debug().Str("id", msg.ID).Str("channel", msg.Channel).Msg("duplicate confirmed message dropped")
			return ""
		}
	}

	idx := s.findPendingLocked(log, msg)
	var reconciled string
	if idx >= 0 {
		reconciled = log[idx].ID
		log[idx] = msg
	} else {
		log = append(log, msg)
	}
	s.logs[msg.Channel] = log
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConfirmedAppends.Inc()
		if reconciled != "" {
			s.metrics.Reconciled.Inc()
		}
	}
	s.notifyChannel(msg.Channel)
	return reconciled
}

// findPendingLocked locates the pending message a confirmation belongs to.
func (s *MessageStore) findPendingLocked(log []Message, msg Message) int {
	if msg.Token != "" {
		for i, m := range log {
			if m.IsPending() && m.Token == msg.Token {
				return i
			}
		}
		// Token present but no pending carries it: confirmation for a
		// send from another device or an already-expired echo.
		return -1
	}
	for i, m := range log {
		if m.IsPending() && m.Author.Username == msg.Author.Username && m.Text == msg.Text {
			return i
		}
	}
	return -1
}

// BeginPendingSend creates and appends the optimistic local echo and returns
// it. The caller owns arming the expiry timer for the returned id.
func (s *MessageStore) BeginPendingSend(channel string, author Identity, text string, isBroadcast bool) Message {
	token := uuid.NewString()
	msg := Message{
		ID:          "pending-" + token,
		Channel:     channel,
		Author:      author,
		Text:        text,
		Timestamp:   s.now(),
		State:       StatePending,
		IsBroadcast: isBroadcast,
		Token:       token,
	}

	s.mu.Lock()
	s.logs[channel] = append(s.logs[channel], msg)
	s.mu.Unlock()

	s.notifyChannel(channel)
	return msg
}

// ExpirePending removes a pending message whose confirmation never arrived.
// Silent: no error placeholder is substituted. Already-reconciled ids are a
// no-op.
func (s *MessageStore) ExpirePending(id string) bool {
	s.mu.Lock()
	var channel string
	removed := false
	for ch, log := range s.logs {
		for i, m := range log {
			if m.ID == id && m.IsPending() {
				s.logs[ch] = append(log[:i], log[i+1:]...)
				channel = ch
				removed = true
				break
			}
		}
		if removed {
			break
		}
	}
	s.mu.Unlock()

	if removed {
		if s.metrics != nil {
			s.metrics.PendingExpired.Inc()
		}
		s.logger.Debug().Str("id", id).Str("channel", channel).Msg("pending send expired")
		s.notifyChannel(channel)
	}
	return removed
}

// RejectPending removes every currently pending message, across all
// channels. Rejections are not reliably correlated to one send, so the
// rollback is deliberately broad. Returns the ids that were removed.
func (s *MessageStore) RejectPending() []string {
	s.mu.Lock()
	var removed []string
	var touched []string
	for ch, log := range s.logs {
		kept := log[:0]
		for _, m := range log {
			if m.IsPending() {
				removed = append(removed, m.ID)
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) != len(log) {
			s.logs[ch] = kept
			touched = append(touched, ch)
		}
	}
	s.mu.Unlock()

	if s.metrics != nil && len(removed) > 0 {
		s.metrics.SendsRejected.Add(float64(len(removed)))
	}
	for _, ch := range touched {
		s.notifyChannel(ch)
	}
	return removed
}
