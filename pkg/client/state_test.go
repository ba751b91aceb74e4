package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	state, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })
	return state
}

func TestStateConfigRoundTrip(t *testing.T) {
	state := newTestState(t)

	value, err := state.GetConfig("missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, state.SetConfig("key", "value"))
	value, err = state.GetConfig("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	// Overwrite replaces in place.
	require.NoError(t, state.SetConfig("key", "other"))
	value, err = state.GetConfig("key")
	require.NoError(t, err)
	assert.Equal(t, "other", value)
}

func TestStateExplicitDisconnectFlag(t *testing.T) {
	state := newTestState(t)

	assert.False(t, state.GetExplicitDisconnect())

	require.NoError(t, state.SetExplicitDisconnect(true))
	assert.True(t, state.GetExplicitDisconnect())

	require.NoError(t, state.SetExplicitDisconnect(false))
	assert.False(t, state.GetExplicitDisconnect())
}

func TestStateLastWalletAndChannel(t *testing.T) {
	state := newTestState(t)

	assert.Empty(t, state.GetLastWalletAddress())
	assert.Empty(t, state.GetLastChannel())

	require.NoError(t, state.SetLastWalletAddress("4k3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1"))
	require.NoError(t, state.SetLastChannel("random"))

	assert.Equal(t, "4k3Rv8oGSe6PJWCsfGuDLLVvBnrPfMyRaKZxwWt2fGh1", state.GetLastWalletAddress())
	assert.Equal(t, "random", state.GetLastChannel())
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	state, err := OpenState(path)
	require.NoError(t, err)
	require.NoError(t, state.SetLastChannel("random"))
	require.NoError(t, state.Close())

	reopened, err := OpenState(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "random", reopened.GetLastChannel())
}
