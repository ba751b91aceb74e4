package client

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterm/solterm/pkg/protocol"
)

type binderRecorder struct {
	announced []Identity
	changes   []*Session
}

func (r *binderRecorder) announce(id Identity) { r.announced = append(r.announced, id) }
func (r *binderRecorder) onChange(s *Session)  { r.changes = append(r.changes, s) }

func newTestBinder() (*IdentityBinder, *binderRecorder) {
	rec := &binderRecorder{}
	return NewIdentityBinder(rec.announce, rec.onChange, zerolog.Nop()), rec
}

const testAddr = "4k3Rplaceholder44CharLongBase58WalletAddfGh1"

func TestBindAnnouncesOnce(t *testing.T) {
	binder, rec := newTestBinder()

	session := binder.Bind(testAddr, "")
	require.NotNil(t, session)
	assert.Equal(t, testAddr, session.Identity.WalletAddress)
	assert.Equal(t, protocol.RoleUser, session.Identity.Role)
	require.Len(t, rec.announced, 1)

	// Rebinding the same address is a no-op.
	again := binder.Bind(testAddr, "")
	assert.Same(t, session, again)
	assert.Len(t, rec.announced, 1)
	assert.Len(t, rec.changes, 1)
}

func TestBindDifferentAddressReplacesSession(t *testing.T) {
	binder, rec := newTestBinder()

	first := binder.Bind(testAddr, "")
	second := binder.Bind("other-address", "")

	assert.NotSame(t, first, second)
	assert.Len(t, rec.announced, 2)
	assert.Equal(t, "other-address", binder.Current().Identity.WalletAddress)
}

func TestUnbindEmitsNullTransition(t *testing.T) {
	binder, rec := newTestBinder()

	binder.Bind(testAddr, "")
	binder.Unbind()

	assert.Nil(t, binder.Current())
	require.Len(t, rec.changes, 2)
	assert.Nil(t, rec.changes[1])

	// Unbinding with nothing bound is a no-op.
	binder.Unbind()
	assert.Len(t, rec.changes, 2)
}

func TestConfirmRole(t *testing.T) {
	binder, _ := newTestBinder()

	binder.Bind(testAddr, "")
	binder.ConfirmRole(protocol.RoleDeveloper)
	assert.Equal(t, protocol.RoleDeveloper, binder.Current().Identity.Role)

	// Empty role from the server keeps the current one.
	binder.ConfirmRole("")
	assert.Equal(t, protocol.RoleDeveloper, binder.Current().Identity.Role)
}

func TestConfirmRoleWithoutSession(t *testing.T) {
	binder, _ := newTestBinder()

	binder.ConfirmRole(protocol.RoleAdmin)
	assert.Nil(t, binder.Current())
}

func TestReannounce(t *testing.T) {
	binder, rec := newTestBinder()

	binder.Reannounce()
	assert.Empty(t, rec.announced)

	binder.Bind(testAddr, "")
	binder.Reannounce()
	assert.Len(t, rec.announced, 2)
}
