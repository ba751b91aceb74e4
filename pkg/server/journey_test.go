package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterm/solterm/pkg/database"
	"github.com/solterm/solterm/pkg/protocol"
)

const (
	adminWallet = "AdminWa11etAddre55ForJourneyTestingPurposes1"
	userWallet  = "UserWa11etAddre55ForJourneyTestingPurposes11"
)

type testServer struct {
	srv  *Server
	http *httptest.Server
}

func startTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	require.NoError(t, db.SeedDefaultChannels())
	t.Cleanup(func() { db.Close() })

	config := DefaultConfig()
	config.AdminWallets = []string{adminWallet}
	if mutate != nil {
		mutate(&config)
	}

	srv := NewServer(db, config, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{srv: srv, http: ts}
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/socket"
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(event string, payload interface{}) {
	c.t.Helper()
	raw, err := protocol.EncodeEnvelope(event, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, raw))
}

// waitEvent reads until the named event arrives, skipping unrelated traffic.
func (c *testClient) waitEvent(event string) *protocol.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, raw, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", event)
		env, err := protocol.DecodeEnvelope(raw)
		require.NoError(c.t, err)
		if env.Event == event {
			return env
		}
	}
}

func (c *testClient) join(username, wallet string) protocol.IdentityPayload {
	c.t.Helper()
	c.send(protocol.EventJoin, protocol.IdentityPayload{Username: username, WalletAddress: wallet})
	env := c.waitEvent(protocol.EventIdentityConfirmed)
	var confirmed protocol.IdentityPayload
	require.NoError(c.t, env.Bind(&confirmed))
	return confirmed
}

func TestJourneySendAndFanout(t *testing.T) {
	ts := startTestServer(t, nil)

	alice := ts.dial(t)
	bob := ts.dial(t)

	confirmed := alice.join("alice", userWallet)
	assert.Equal(t, protocol.RoleUser, confirmed.Role)

	// Bob sees alice arrive.
	bob.join("bob", "")
	env := alice.waitEvent(protocol.EventUserJoined)
	var joined protocol.UserPayload
	require.NoError(t, env.Bind(&joined))
	assert.Equal(t, "bob", joined.Username)

	alice.send(protocol.EventSendMessage, protocol.SendPayload{
		Channel: "general", Text: "hello", Token: "tok-1",
	})

	// Both sides receive the same confirmed record; alice's copy carries
	// her correlation token back.
	for _, c := range []*testClient{alice, bob} {
		env := c.waitEvent(protocol.EventMessageConfirmed)
		var rec protocol.MessageRecord
		require.NoError(t, env.Bind(&rec))
		assert.Equal(t, "general", rec.Channel)
		assert.Equal(t, "hello", rec.Text)
		assert.Equal(t, "alice", rec.Username)
		assert.Equal(t, "tok-1", rec.Token)
		assert.NotEmpty(t, rec.ID)
	}

	// The message is immediately visible over REST backfill.
	resp, err := http.Get(ts.http.URL + "/api/messages?channel=general&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []protocol.MessageRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Text)
}

func TestJourneyRejections(t *testing.T) {
	ts := startTestServer(t, func(c *Config) {
		c.MaxMessageLength = 10
		c.MessageRateLimit = 2
	})

	client := ts.dial(t)

	// Sending before a join is refused.
	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "hi", Token: "t0"})
	env := client.waitEvent(protocol.EventSendRejected)
	var reject protocol.RejectPayload
	require.NoError(t, env.Bind(&reject))
	assert.Contains(t, reject.Reason, "identity")
	assert.Equal(t, "t0", reject.Token)

	client.join("alice", userWallet)

	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "   ", Token: "t1"})
	env = client.waitEvent(protocol.EventSendRejected)
	require.NoError(t, env.Bind(&reject))
	assert.Contains(t, reject.Reason, "empty")

	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "way past the limit", Token: "t2"})
	env = client.waitEvent(protocol.EventSendRejected)
	require.NoError(t, env.Bind(&reject))
	assert.Contains(t, reject.Reason, "too long")

	// Two sends fit the rate window, the third does not.
	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "one", Token: "t3"})
	client.waitEvent(protocol.EventMessageConfirmed)
	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "two", Token: "t4"})
	client.waitEvent(protocol.EventMessageConfirmed)
	client.send(protocol.EventSendMessage, protocol.SendPayload{Channel: "general", Text: "три", Token: "t5"})
	env = client.waitEvent(protocol.EventSendRejected)
	require.NoError(t, env.Bind(&reject))
	assert.Contains(t, reject.Reason, "rate limit")
}

func TestJourneyBroadcast(t *testing.T) {
	ts := startTestServer(t, nil)

	admin := ts.dial(t)
	user := ts.dial(t)

	confirmed := admin.join("admin", adminWallet)
	require.Equal(t, protocol.RoleAdmin, confirmed.Role)
	user.join("alice", userWallet)

	// A plain user may not broadcast.
	user.send(protocol.EventBroadcastMessage, protocol.BroadcastPayload{Text: "nope", Token: "t1"})
	env := user.waitEvent(protocol.EventSendRejected)
	var reject protocol.RejectPayload
	require.NoError(t, env.Bind(&reject))
	assert.Contains(t, reject.Reason, "role")

	admin.send(protocol.EventBroadcastMessage, protocol.BroadcastPayload{Text: "maintenance at noon", Token: "t2"})

	env = user.waitEvent(protocol.EventBroadcastConfirmed)
	var fanout protocol.BroadcastFanout
	require.NoError(t, env.Bind(&fanout))
	require.Len(t, fanout.Messages, 3)

	channels := map[string]bool{}
	for _, rec := range fanout.Messages {
		assert.True(t, rec.IsBroadcast)
		assert.Equal(t, "maintenance at noon", rec.Text)
		channels[rec.Channel] = true
	}
	assert.True(t, channels["general"])
	assert.True(t, channels["trading"])
	assert.True(t, channels["support"])
}

func TestJourneyTypingRelay(t *testing.T) {
	ts := startTestServer(t, nil)

	alice := ts.dial(t)
	bob := ts.dial(t)
	alice.join("alice", userWallet)
	bob.join("bob", "")

	alice.send(protocol.EventTyping, protocol.TypingPayload{Channel: "general", IsTyping: true})

	env := bob.waitEvent(protocol.EventTypingChanged)
	var typing protocol.TypingPayload
	require.NoError(t, env.Bind(&typing))
	assert.Equal(t, "alice", typing.Username)
	assert.Equal(t, "general", typing.Channel)
	assert.True(t, typing.IsTyping)
	assert.NotEmpty(t, typing.UserID)

	alice.send(protocol.EventTyping, protocol.TypingPayload{Channel: "general", IsTyping: false})
	env = bob.waitEvent(protocol.EventTypingChanged)
	require.NoError(t, env.Bind(&typing))
	assert.False(t, typing.IsTyping)
}

func TestJourneyUserLeft(t *testing.T) {
	ts := startTestServer(t, nil)

	alice := ts.dial(t)
	bob := ts.dial(t)
	alice.join("alice", userWallet)
	bob.join("bob", "")

	require.NoError(t, bob.conn.Close())

	env := alice.waitEvent(protocol.EventUserLeft)
	var left protocol.UserPayload
	require.NoError(t, env.Bind(&left))
	assert.Equal(t, "bob", left.Username)
}

func TestRESTDirectory(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := http.Get(ts.http.URL + "/api/channels")
	require.NoError(t, err)
	defer resp.Body.Close()

	var channels []protocol.ChannelRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&channels))
	require.Len(t, channels, 3)
	assert.Equal(t, "general", channels[0].Name)

	resp2, err := http.Get(ts.http.URL + "/api/voice-channels")
	require.NoError(t, err)
	defer resp2.Body.Close()

	var voice []protocol.VoiceChannelRecord
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&voice))
	require.Len(t, voice, 1)

	// Missing channel parameter is a client error.
	resp3, err := http.Get(ts.http.URL + "/api/messages")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}
