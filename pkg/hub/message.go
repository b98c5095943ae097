// Package hub pushes tracker status and events to dashboard websockets.
package hub

import "github.com/teslashibe/go-follow/pkg/protocol"

// Message is a pre-encoded JSON payload queued for clients.
type Message []byte

// Encode wraps a protocol message for broadcast.
func Encode(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	return Message(data), nil
}
