package client

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PresenceEntry is one member of the online roster.
type PresenceEntry struct {
	ID       string
	Username string
}

// TypingEntry records that a user is typing in one channel, until ExpiresAt
// or an explicit stop, whichever comes first.
type TypingEntry struct {
	Channel   string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// PresenceTracker owns the online roster and the per-channel typing sets.
// Typing entries are strictly channel-scoped and expire individually; reads
// lazily drop expired entries and Sweep reclaims them in the background.
type PresenceTracker struct {
	mu     sync.Mutex
	roster map[string]PresenceEntry
	typing map[string]map[string]TypingEntry

	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewPresenceTracker creates a tracker. ttl is the typing entry lifetime,
// chosen generously beyond the sender's debounce window to absorb network
// delay.
func NewPresenceTracker(ttl time.Duration, logger zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		roster: make(map[string]PresenceEntry),
		typing: make(map[string]map[string]TypingEntry),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// OnJoin upserts a roster entry. Re-joining an already-present id updates
// display fields instead of duplicating.
func (p *PresenceTracker) OnJoin(user PresenceEntry) {
	p.mu.Lock()
	p.roster[user.ID] = user
	p.mu.Unlock()
}

// OnLeave removes a user from the roster and from every typing set.
func (p *PresenceTracker) OnLeave(userID string) {
	p.mu.Lock()
	delete(p.roster, userID)
	for _, users := range p.typing {
		delete(users, userID)
	}
	p.mu.Unlock()
}

// Roster returns the online users sorted by name.
func (p *PresenceTracker) Roster() []PresenceEntry {
	p.mu.Lock()
	out := make([]PresenceEntry, 0, len(p.roster))
	for _, e := range p.roster {
		out = append(out, e)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// OnTyping upserts (isTyping=true, refreshing the expiry) or removes
// (isTyping=false) a typing entry for one channel.
func (p *PresenceTracker) OnTyping(channel, userID, username string, isTyping bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !isTyping {
		if users, ok := p.typing[channel]; ok {
			delete(users, userID)
		}
		return
	}
	users, ok := p.typing[channel]
	if !ok {
		users = make(map[string]TypingEntry)
		p.typing[channel] = users
	}
	users[userID] = TypingEntry{
		Channel:   channel,
		UserID:    userID,
		Username:  username,
		ExpiresAt: p.now().Add(p.ttl),
	}
}

// TypingUsers returns the users currently typing in a channel, dropping any
// entry whose expiry has elapsed.
func (p *PresenceTracker) TypingUsers(channel string) []TypingEntry {
	now := p.now()
	p.mu.Lock()
	users := p.typing[channel]
	out := make([]TypingEntry, 0, len(users))
	for id, e := range users {
		if !e.ExpiresAt.After(now) {
			delete(users, id)
			continue
		}
		out = append(out, e)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Sweep removes expired typing entries in every channel. Returns the
// channels that changed, so callers can publish scoped notifications.
func (p *PresenceTracker) Sweep() []string {
	now := p.now()
	p.mu.Lock()
	var touched []string
	for channel, users := range p.typing {
		changed := false
		for id, e := range users {
			if !e.ExpiresAt.After(now) {
				delete(users, id)
				changed = true
			}
		}
		if changed {
			touched = append(touched, channel)
		}
	}
	p.mu.Unlock()
	return touched
}
