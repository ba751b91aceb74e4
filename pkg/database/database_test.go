package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterm/solterm/pkg/protocol"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id, channel, username, text string, ts time.Time) protocol.MessageRecord {
	return protocol.MessageRecord{
		ID:        id,
		Channel:   channel,
		Username:  username,
		Role:      protocol.RoleUser,
		Text:      text,
		Timestamp: ts,
	}
}

func TestSeedDefaultChannels(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SeedDefaultChannels())
	channels, err := db.Channels()
	require.NoError(t, err)
	require.Len(t, channels, 3)
	assert.Equal(t, "general", channels[0].Name)

	// Seeding again must not duplicate.
	require.NoError(t, db.SeedDefaultChannels())
	channels, err = db.Channels()
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	voice, err := db.VoiceChannels()
	require.NoError(t, err)
	require.Len(t, voice, 1)
	assert.Equal(t, "Lounge", voice[0].Name)
}

func TestRecentMessagesOrderAndLimit(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		rec := record(
			"m"+string(rune('1'+i)), "general", "alice", "msg",
			base.Add(time.Duration(i)*time.Second),
		)
		require.NoError(t, db.SaveMessage(rec))
	}

	records, err := db.RecentMessages("general", 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest three, oldest first.
	assert.Equal(t, "m3", records[0].ID)
	assert.Equal(t, "m5", records[2].ID)
	assert.True(t, records[0].Timestamp.Before(records[2].Timestamp))
}

func TestRecentMessagesAll(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SeedDefaultChannels())

	now := time.Now().UTC()
	require.NoError(t, db.SaveMessage(record("g1", "general", "alice", "hi", now)))
	require.NoError(t, db.SaveMessage(record("t1", "trading", "bob", "gm", now)))

	byChannel, err := db.RecentMessagesAll(50)
	require.NoError(t, err)
	assert.Len(t, byChannel["general"], 1)
	assert.Len(t, byChannel["trading"], 1)
	assert.Empty(t, byChannel["support"])
}

func TestCreateAndDeleteChannel(t *testing.T) {
	db := openTestDB(t)

	ch, err := db.CreateChannel("alpha", "first")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)

	_, err = db.CreateChannel("alpha", "again")
	assert.ErrorIs(t, err, ErrChannelExists)

	require.NoError(t, db.SaveMessage(record("a1", "alpha", "alice", "hi", time.Now())))
	require.NoError(t, db.DeleteChannel("alpha"))

	records, err := db.RecentMessages("alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, db.DeleteChannel("alpha"), ErrChannelNotFound)
}

func TestUserRoles(t *testing.T) {
	db := openTestDB(t)

	role, err := db.UserRole("unknown-wallet")
	require.NoError(t, err)
	assert.Equal(t, protocol.RoleUser, role)

	require.NoError(t, db.SetUserRole("wallet-1", protocol.RoleAdmin))
	role, err = db.UserRole("wallet-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.RoleAdmin, role)

	// Reassignment overwrites.
	require.NoError(t, db.SetUserRole("wallet-1", protocol.RoleDeveloper))
	role, err = db.UserRole("wallet-1")
	require.NoError(t, err)
	assert.Equal(t, protocol.RoleDeveloper, role)
}

func TestBroadcastFlagRoundTrip(t *testing.T) {
	db := openTestDB(t)

	rec := record("b1", "general", "admin", "maintenance", time.Now().UTC())
	rec.IsBroadcast = true
	require.NoError(t, db.SaveMessage(rec))

	records, err := db.RecentMessages("general", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsBroadcast)
}
