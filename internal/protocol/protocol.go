// Package protocol defines the JSON wire format spoken with the devtools
// server and the binary codec for captured console segments.
//
// Every frame is an envelope `{"type": <string>, "payload": <object>}`.
// Types the client sends are "client_log" and "client_spillover"; the only
// type it consumes is "server_info". Unknown types are ignored on both
// sides so either end can be upgraded independently.
package protocol

import (
	"encoding/json"
	"time"
)

const (
	// DefaultHost is the loopback address the devtools server binds by default.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the devtools server's default port.
	DefaultPort = 8081
	// WebsocketPath is the fixed endpoint path on the server.
	WebsocketPath = "/textual-devtools-websocket"

	// ConnectTimeout bounds the websocket handshake during connect.
	ConnectTimeout = 3 * time.Second
	// LogQueueMaxSize is the capacity of the outbound log queue.
	LogQueueMaxSize = 512
)

// Message types carried in the envelope.
const (
	TypeClientLog       = "client_log"
	TypeClientSpillover = "client_spillover"
	TypeServerInfo      = "server_info"
)

// Envelope is the wire-message wrapper. Payload stays raw until the type
// is known, so unrecognized messages cost nothing to skip.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ClientLogPayload is one shipped log record.
type ClientLogPayload struct {
	Timestamp       int64  `json:"timestamp"`
	Path            string `json:"path"`
	LineNumber      int    `json:"line_number"`
	EncodedSegments string `json:"encoded_segments"`
}

// ClientSpilloverPayload reports how many records were dropped because the
// outbound queue was full.
type ClientSpilloverPayload struct {
	Spillover int `json:"spillover"`
}

// ServerInfoPayload is the server's display geometry.
type ServerInfoPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewEnvelope wraps a payload value in an envelope of the given type.
func NewEnvelope(msgType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: msgType, Payload: raw}, nil
}

// NewClientLog builds a client_log envelope. The payload contains only
// marshal-safe scalar fields, so construction cannot fail.
func NewClientLog(payload ClientLogPayload) *Envelope {
	env, _ := NewEnvelope(TypeClientLog, payload)
	return env
}

// NewClientSpillover builds a client_spillover envelope.
func NewClientSpillover(spillover int) *Envelope {
	env, _ := NewEnvelope(TypeClientSpillover, ClientSpilloverPayload{Spillover: spillover})
	return env
}

// ParseEnvelope decodes a received frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Encode serializes the envelope for transmission.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
