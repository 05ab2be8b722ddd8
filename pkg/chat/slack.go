package chat

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/abrezinsky/lunchbot/internal/errors"
	"github.com/abrezinsky/lunchbot/internal/logger"
)

// SlackNotifier posts messages through the Slack Web API
type SlackNotifier struct {
	api      *slack.Client
	log      logger.Logger
	defaults []MessageOption
}

// NewSlackNotifier creates a notifier using a bot token. defaults are applied
// before the options passed to each Send.
func NewSlackNotifier(token string, log logger.Logger, defaults []MessageOption, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		api:      slack.New(token, opts...),
		log:      log,
		defaults: defaults,
	}
}

// Send posts text to destination
func (n *SlackNotifier) Send(ctx context.Context, destination, text string, opts ...MessageOption) error {
	msg := NewMessage(destination, text, append(n.defaults[:len(n.defaults):len(n.defaults)], opts...)...)

	options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.IconEmoji != "" {
		options = append(options, slack.MsgOptionIconEmoji(msg.IconEmoji))
	}
	if msg.Username != "" {
		options = append(options, slack.MsgOptionUsername(msg.Username))
	}

	channel, ts, err := n.api.PostMessageContext(ctx, msg.Destination, options...)
	if err != nil {
		return errors.Delivery(destination, err)
	}
	n.log.Debug("Message sent", "channel", channel, "ts", ts)
	return nil
}

// BotUserID asks Slack which user the token belongs to
func (n *SlackNotifier) BotUserID(ctx context.Context) (string, error) {
	resp, err := n.api.AuthTestContext(ctx)
	if err != nil {
		return "", errors.Unavailable("slack.auth_test", err)
	}
	return resp.UserID, nil
}
