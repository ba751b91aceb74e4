package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solterm/solterm/pkg/protocol"
)

func TestFetchChannel(t *testing.T) {
	records := []protocol.MessageRecord{
		{ID: "m1", Channel: "general", Username: "alice", Text: "one", Timestamp: time.Now().UTC()},
		{ID: "m2", Channel: "general", Username: "bob", Text: "two", Timestamp: time.Now().UTC()},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages", r.URL.Path)
		assert.Equal(t, "general", r.URL.Query().Get("channel"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(records)
	}))
	defer server.Close()

	client := NewBackfillClient(server.URL, zerolog.Nop())
	got, err := client.FetchChannel(context.Background(), "general", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestFetchAll(t *testing.T) {
	byChannel := map[string][]protocol.MessageRecord{
		"general": {{ID: "g1", Channel: "general", Username: "alice", Text: "hi"}},
		"random":  {{ID: "r1", Channel: "random", Username: "bob", Text: "yo"}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/messages/all", r.URL.Path)
		json.NewEncoder(w).Encode(byChannel)
	}))
	defer server.Close()

	client := NewBackfillClient(server.URL, zerolog.Nop())
	got, err := client.FetchAll(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got["general"][0].ID)
}

func TestListChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/channels", r.URL.Path)
		json.NewEncoder(w).Encode([]protocol.ChannelRecord{
			{ID: "1", Name: "general", Description: "main"},
			{ID: "2", Name: "random"},
		})
	}))
	defer server.Close()

	client := NewBackfillClient(server.URL, zerolog.Nop())
	channels, err := client.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "general", channels[0].Name)
}

func TestBackfillStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewBackfillClient(server.URL, zerolog.Nop())
	_, err := client.FetchChannel(context.Background(), "general", 50)
	assert.ErrorIs(t, err, ErrBackfillStatus)
}

func TestBackfillContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewBackfillClient(server.URL, zerolog.Nop())
	_, err := client.FetchChannel(ctx, "general", 50)
	assert.Error(t, err)
}
