package chat

import (
	"context"
	"sync"
)

// MockNotifier records messages instead of sending them
type MockNotifier struct {
	mu       sync.Mutex
	messages []Message
	sendErr  error
}

// MockOption configures the mock notifier
type MockOption func(*MockNotifier)

// WithSendError makes every Send fail with err
func WithSendError(err error) MockOption {
	return func(m *MockNotifier) {
		m.sendErr = err
	}
}

// NewMockNotifier creates a new mock notifier with optional configuration
func NewMockNotifier(opts ...MockOption) *MockNotifier {
	m := &MockNotifier{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send records the message, or returns the configured error
func (m *MockNotifier) Send(ctx context.Context, destination, text string, opts ...MessageOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}
	m.messages = append(m.messages, NewMessage(destination, text, opts...))
	return nil
}

// SetSendError changes the error returned by Send
func (m *MockNotifier) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Messages returns a copy of everything sent so far
func (m *MockNotifier) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Last returns the most recent message and whether there was one
func (m *MockNotifier) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

// Reset clears recorded messages
func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

var (
	_ Notifier = (*MockNotifier)(nil)
	_ Notifier = (*SlackNotifier)(nil)
)
