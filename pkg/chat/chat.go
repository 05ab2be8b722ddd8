// Package chat delivers outbound bot messages to a chat platform.
package chat

import "context"

// Notifier sends a message to a destination. Destinations are opaque
// channel or user identifiers such as "#pub-lunch" or "U024BE7LH".
type Notifier interface {
	Send(ctx context.Context, destination, text string, opts ...MessageOption) error
}

// Message is a resolved outbound message
type Message struct {
	Destination string
	Text        string
	IconEmoji   string
	Username    string
}

// MessageOption sets a presentation hint on an outbound message
type MessageOption func(*Message)

// WithIconEmoji sets the emoji shown as the sender's avatar
func WithIconEmoji(emoji string) MessageOption {
	return func(m *Message) {
		m.IconEmoji = emoji
	}
}

// WithUsername sets the display name the message is posted under
func WithUsername(name string) MessageOption {
	return func(m *Message) {
		m.Username = name
	}
}

// NewMessage applies opts to a message for destination
func NewMessage(destination, text string, opts ...MessageOption) Message {
	m := Message{Destination: destination, Text: text}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
