package protocol

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestEnvelopeRoundTrip tests that any event name and message payload
// survives an encode/decode cycle unchanged.
func TestEnvelopeRoundTrip(t *testing.T) {
	events := []string{
		EventIdentityConfirmed, EventMessageConfirmed, EventBroadcastConfirmed,
		EventUserJoined, EventUserLeft, EventTypingChanged, EventSendRejected,
		EventChannelCreated, EventChannelDeleted,
		EventJoin, EventSendMessage, EventBroadcastMessage, EventTyping,
	}

	rapid.Check(t, func(t *rapid.T) {
		event := rapid.SampledFrom(events).Draw(t, "event")
		original := MessageRecord{
			ID:          rapid.StringMatching(`[a-z0-9-]{1,32}`).Draw(t, "id"),
			Channel:     rapid.SampledFrom([]string{"general", "trading", "nft", "defi", "announcements"}).Draw(t, "channel"),
			Username:    rapid.StringMatching(`[1-9A-HJ-NP-Za-km-z]{4,44}`).Draw(t, "username"),
			Role:        rapid.SampledFrom([]string{RoleUser, RoleDeveloper, RoleAdmin, ""}).Draw(t, "role"),
			Text:        rapid.String().Draw(t, "text"),
			Timestamp:   time.Unix(rapid.Int64Range(0, 1<<33).Draw(t, "ts"), 0).UTC(),
			IsBroadcast: rapid.Bool().Draw(t, "isBroadcast"),
			Token:       rapid.StringMatching(`([a-f0-9-]{0,36})`).Draw(t, "token"),
		}

		raw, err := EncodeEnvelope(event, original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		env, err := DecodeEnvelope(raw)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if env.Event != event {
			t.Fatalf("event mismatch: got %q, want %q", env.Event, event)
		}

		var decoded MessageRecord
		if err := env.Bind(&decoded); err != nil {
			t.Fatalf("bind failed: %v", err)
		}
		if decoded != original {
			t.Fatalf("payload mismatch: got %+v, want %+v", decoded, original)
		}
	})
}
