package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// MaxEnvelopeSize is the maximum allowed size of a single wire envelope (256 KB)
	MaxEnvelopeSize = 256 * 1024
)

var (
	ErrEnvelopeTooLarge = errors.New("envelope exceeds maximum size (256 KB)")
	ErrEmptyEvent       = errors.New("envelope has no event name")
	ErrUnknownEvent     = errors.New("unknown event name")
)

// Envelope is the wire format for every push-transport event, in both
// directions: a named event plus a JSON payload.
// Format: {"event": "<name>", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEnvelope serializes an event name and payload into wire bytes.
func EncodeEnvelope(event string, payload interface{}) ([]byte, error) {
	if event == "" {
		return nil, ErrEmptyEvent
	}

	var data json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
		}
		data = encoded
	}

	out, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, err
	}
	if len(out) > MaxEnvelopeSize {
		return nil, ErrEnvelopeTooLarge
	}
	return out, nil
}

// DecodeEnvelope parses wire bytes into an Envelope. The payload stays raw;
// use Envelope.Bind to decode it into a typed struct.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	if len(raw) > MaxEnvelopeSize {
		return nil, ErrEnvelopeTooLarge
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Event == "" {
		return nil, ErrEmptyEvent
	}
	return &env, nil
}

// Bind decodes the envelope payload into the given struct.
func (e *Envelope) Bind(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}
