package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload interface{}
		wantErr error
	}{
		{
			name:    "event with no payload",
			event:   EventUserLeft,
			payload: nil,
		},
		{
			name:  "sendMessage payload",
			event: EventSendMessage,
			payload: SendPayload{
				Channel: "general",
				Text:    "gm",
				Token:   "tok-1",
			},
		},
		{
			name:  "typing payload",
			event: EventTyping,
			payload: TypingPayload{
				Channel:  "nft",
				IsTyping: true,
			},
		},
		{
			name:    "empty event name rejected",
			event:   "",
			payload: nil,
			wantErr: ErrEmptyEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := EncodeEnvelope(tt.event, tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			env, err := DecodeEnvelope(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.event, env.Event)
		})
	}
}

func TestEnvelopeBind(t *testing.T) {
	sent := MessageRecord{
		ID:        "m-42",
		Channel:   "trading",
		Username:  "4k3R7mPzWd1vQn8sT2xYbLcF9jH6gVuEpN5aK3dSfGh1",
		Role:      RoleUser,
		Text:      "wen moon",
		Timestamp: time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC),
		Token:     "tok-9",
	}

	raw, err := EncodeEnvelope(EventMessageConfirmed, sent)
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	require.Equal(t, EventMessageConfirmed, env.Event)

	var got MessageRecord
	require.NoError(t, env.Bind(&got))
	assert.Equal(t, sent, got)
}

func TestEnvelopeBindNoPayload(t *testing.T) {
	raw, err := EncodeEnvelope(EventUserLeft, nil)
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)

	var user UserPayload
	assert.Error(t, env.Bind(&user))
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	t.Run("malformed JSON", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("missing event name", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"data":{"text":"hi"}}`))
		assert.ErrorIs(t, err, ErrEmptyEvent)
	})

	t.Run("oversized envelope", func(t *testing.T) {
		raw := make([]byte, MaxEnvelopeSize+1)
		_, err := DecodeEnvelope(raw)
		assert.ErrorIs(t, err, ErrEnvelopeTooLarge)
	})

	t.Run("oversized payload on encode", func(t *testing.T) {
		big := make([]byte, MaxEnvelopeSize)
		for i := range big {
			big[i] = 'a'
		}
		_, err := EncodeEnvelope(EventSendMessage, SendPayload{Channel: "general", Text: string(big)})
		assert.ErrorIs(t, err, ErrEnvelopeTooLarge)
	})
}

func TestBroadcastFanoutRoundTrip(t *testing.T) {
	fanout := BroadcastFanout{
		Messages: []MessageRecord{
			{ID: "b-1", Channel: "general", Username: "mod", Text: "maintenance at noon", IsBroadcast: true, Timestamp: time.Unix(1700000000, 0).UTC()},
			{ID: "b-2", Channel: "trading", Username: "mod", Text: "maintenance at noon", IsBroadcast: true, Timestamp: time.Unix(1700000000, 0).UTC()},
		},
	}

	raw, err := EncodeEnvelope(EventBroadcastConfirmed, fanout)
	require.NoError(t, err)

	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)

	var got BroadcastFanout
	require.NoError(t, env.Bind(&got))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "general", got.Messages[0].Channel)
	assert.Equal(t, "trading", got.Messages[1].Channel)
	assert.True(t, got.Messages[0].IsBroadcast)
}
