package chat

import (
	"context"

	"github.com/abrezinsky/lunchbot/internal/logger"
)

// LogNotifier writes messages to the log instead of a chat platform.
// It stands in for Slack when no token is configured.
type LogNotifier struct {
	log logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Send logs the message and never fails
func (n *LogNotifier) Send(ctx context.Context, destination, text string, opts ...MessageOption) error {
	msg := NewMessage(destination, text, opts...)
	n.log.Info("Chat message", "destination", msg.Destination, "username", msg.Username, "text", msg.Text)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
