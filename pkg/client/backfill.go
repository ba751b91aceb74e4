package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/solterm/solterm/pkg/protocol"
)

// ErrBackfillStatus wraps a non-success HTTP status from the backfill
// service.
var ErrBackfillStatus = errors.New("backfill request failed")

// BackfillClient fetches historical messages and the channel directory over
// REST. It is the engine's only request/response collaborator.
type BackfillClient struct {
	baseURL string
	httpc   *http.Client
	logger  zerolog.Logger
}

// NewBackfillClient creates a client for the given API base URL
// (e.g. "https://chat.example.com").
func NewBackfillClient(baseURL string, logger zerolog.Logger) *BackfillClient {
	return &BackfillClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With().Str("component", "backfill").Logger(),
	}
}

// FetchChannel loads up to limit confirmed messages for one channel, oldest
// first, as the server ordered them.
func (c *BackfillClient) FetchChannel(ctx context.Context, channel string, limit int) ([]protocol.MessageRecord, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("limit", strconv.Itoa(limit))

	var records []protocol.MessageRecord
	if err := c.getJSON(ctx, "/api/messages?"+q.Encode(), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchAll loads the startup snapshot: up to limit messages per channel,
// keyed by channel.
func (c *BackfillClient) FetchAll(ctx context.Context, limit int) (map[string][]protocol.MessageRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var byChannel map[string][]protocol.MessageRecord
	if err := c.getJSON(ctx, "/api/messages/all?"+q.Encode(), &byChannel); err != nil {
		return nil, err
	}
	return byChannel, nil
}

// ListChannels loads the channel directory.
func (c *BackfillClient) ListChannels(ctx context.Context) ([]protocol.ChannelRecord, error) {
	var channels []protocol.ChannelRecord
	if err := c.getJSON(ctx, "/api/channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ListVoiceChannels loads the voice-channel directory. Directory entries
// only; voice calling is not implemented.
func (c *BackfillClient) ListVoiceChannels(ctx context.Context) ([]protocol.VoiceChannelRecord, error) {
	var channels []protocol.VoiceChannelRecord
	if err := c.getJSON(ctx, "/api/voice-channels", &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *BackfillClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backfill request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrBackfillStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backfill decode: %w", err)
	}
	return nil
}
