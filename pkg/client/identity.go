package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solterm/solterm/pkg/protocol"
)

// Session is the local identity bound to the transport. Exactly one session
// is active at a time.
type Session struct {
	Identity  Identity
	StartedAt time.Time
}

// IdentityBinder holds the current user identity and announces it to the
// transport when a session starts. Binding is idempotent: rebinding the same
// address does not re-announce; changing or clearing the identity announces
// or retracts exactly once.
type IdentityBinder struct {
	mu      sync.Mutex
	current *Session

	announce func(Identity)
	onChange func(*Session)
	logger   zerolog.Logger
	now      func() time.Time
}

// NewIdentityBinder creates a binder. announce pushes the identity to the
// transport; onChange observes every session transition, including the null
// transition on unbind. Either may be nil.
func NewIdentityBinder(announce func(Identity), onChange func(*Session), logger zerolog.Logger) *IdentityBinder {
	return &IdentityBinder{
		announce: announce,
		onChange: onChange,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

// Bind starts (or replaces) a session for the given wallet address. Returns
// the active session. Rebinding the identical address is a no-op.
func (b *IdentityBinder) Bind(address, role string) *Session {
	if role == "" {
		role = protocol.RoleUser
	}

	b.mu.Lock()
	if b.current != nil && b.current.Identity.WalletAddress == address {
		session := b.current
		b.mu.Unlock()
		return session
	}
	session := &Session{
		Identity: Identity{
			Username:      address,
			WalletAddress: address,
			Role:          role,
		},
		StartedAt: b.now(),
	}
	b.current = session
	b.mu.Unlock()

	b.logger.Info().Str("address", FormatWalletAddress(address)).Str("role", role).Msg("identity bound")
	if b.announce != nil {
		b.announce(session.Identity)
	}
	if b.onChange != nil {
		b.onChange(session)
	}
	return session
}

// Unbind destroys the active session and emits the null identity transition.
// No-op when nothing is bound.
func (b *IdentityBinder) Unbind() {
	b.mu.Lock()
	if b.current == nil {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.mu.Unlock()

	b.logger.Info().Msg("identity unbound")
	if b.onChange != nil {
		b.onChange(nil)
	}
}

// Current returns the active session, nil when no identity is bound.
func (b *IdentityBinder) Current() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// ConfirmRole applies the server-assigned role from identityConfirmed to the
// active session.
func (b *IdentityBinder) ConfirmRole(role string) {
	if role == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.current.Identity.Role = role
	}
}

// Reannounce pushes the bound identity to the transport again, used after a
// connection is restored. No-op without a session.
func (b *IdentityBinder) Reannounce() {
	b.mu.Lock()
	session := b.current
	b.mu.Unlock()
	if session != nil && b.announce != nil {
		b.announce(session.Identity)
	}
}
