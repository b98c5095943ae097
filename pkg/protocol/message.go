// Package protocol defines the messages exchanged with landmark producers,
// dashboard clients and the actuator.
//
// Landmark producers and dashboards use a JSON envelope over WebSocket or
// HTTP. Binary WebSocket frames and sidecar pipes carry msgpack-encoded
// frames. The actuator receives plain ASCII control lines (see line.go).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-follow/pkg/landmark"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Producer → server
	TypeFrame    MessageType = "frame"    // Landmark detection result
	TypeViewport MessageType = "viewport" // Display surface resized
	TypeTap      MessageType = "tap"      // Manual target selection

	// Server → dashboard
	TypeStatus MessageType = "status" // Pipeline status snapshot
	TypeEvent  MessageType = "event"  // Dashboard event log entry
	TypeError  MessageType = "error"  // Rejected message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// ErrUnknownType is returned for envelopes with an unrecognized type.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	switch msg.Type {
	case TypeFrame, TypeViewport, TypeTap, TypeStatus, TypeEvent, TypeError, TypePing, TypePong:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return &msg, nil
}

// ViewportData reports the display surface size in pixels.
type ViewportData struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TapData is a pointer event in view pixels.
type TapData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ErrorData explains why a message was rejected.
type ErrorData struct {
	Message string `json:"message"`
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// NewErrorMessage creates an error message.
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// GetFrame extracts and validates a landmark frame from a message.
func (m *Message) GetFrame() (*landmark.Frame, error) {
	var f landmark.Frame
	if err := m.ParseData(&f); err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}
	if err := ValidateFrame(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetViewportData extracts viewport data from a message
func (m *Message) GetViewportData() (*ViewportData, error) {
	var data ViewportData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTapData extracts tap data from a message
func (m *Message) GetTapData() (*TapData, error) {
	var data TapData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
