package client

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/solterm/solterm/pkg/protocol"
)

// Whatever order backfills, optimistic sends, confirmations, expiries and
// rejections arrive in, a channel log never holds the same confirmed id
// twice and never holds more than one message per pending token.
func TestStoreNoDuplicateIDs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newTestStore()

		channels := []string{"general", "random"}
		ids := rapid.SampledFrom([]string{"m1", "m2", "m3", "m4", "m5"})
		users := rapid.SampledFrom([]string{"alice", "bob"})
		texts := rapid.SampledFrom([]string{"hi", "yo"})

		var pendingIDs []string

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			channel := rapid.SampledFrom(channels).Draw(t, "channel")
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				msg := store.BeginPendingSend(channel, testIdentity(users.Draw(t, "author")), texts.Draw(t, "text"), false)
				pendingIDs = append(pendingIDs, msg.ID)
			case 1:
				rec := protocol.MessageRecord{
					ID:        ids.Draw(t, "id"),
					Channel:   channel,
					Username:  users.Draw(t, "user"),
					Text:      texts.Draw(t, "content"),
					Timestamp: time.Now(),
				}
				store.AppendConfirmed(rec)
			case 2:
				// Server snapshots carry distinct ids by construction.
				var records []protocol.MessageRecord
				seen := map[string]bool{}
				n := rapid.IntRange(0, 3).Draw(t, "n")
				for j := 0; j < n; j++ {
					id := ids.Draw(t, "bid")
					if seen[id] {
						continue
					}
					seen[id] = true
					records = append(records, protocol.MessageRecord{
						ID:        id,
						Channel:   channel,
						Username:  users.Draw(t, "buser"),
						Text:      texts.Draw(t, "btext"),
						Timestamp: time.Now(),
					})
				}
				store.LoadBackfill(channel, records)
			case 3:
				if len(pendingIDs) > 0 {
					idx := rapid.IntRange(0, len(pendingIDs)-1).Draw(t, "expire")
					store.ExpirePending(pendingIDs[idx])
				}
			case 4:
				store.RejectPending()
			}

			for _, ch := range channels {
				confirmed := map[string]int{}
				tokens := map[string]int{}
				for _, m := range store.Snapshot(ch) {
					if m.State == StateError {
						continue
					}
					if !m.IsPending() {
						confirmed[m.ID]++
						if confirmed[m.ID] > 1 {
							t.Fatalf("channel %s holds confirmed id %s twice", ch, m.ID)
						}
					}
					if m.Token != "" && m.IsPending() {
						tokens[m.Token]++
						if tokens[m.Token] > 1 {
							t.Fatalf("channel %s holds pending token %s twice", ch, m.Token)
						}
					}
				}
			}
		}
	})
}
