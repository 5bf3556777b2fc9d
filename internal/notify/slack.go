package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// slackClient is the subset of the Slack API the notifier uses.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts messages to one Slack channel.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack builds a Slack notifier from a bot token and channel ID.
func NewSlack(token, channel string) (*Slack, error) {
	if token == "" || channel == "" {
		return nil, fmt.Errorf("slack token and channel are required")
	}
	return &Slack{client: slack.New(token), channel: channel}, nil
}

// NewSlackWithClient constructs a notifier from an existing client (primarily for testing).
func NewSlackWithClient(client slackClient, channel string) *Slack {
	return &Slack{client: client, channel: channel}
}

// Send implements scraper.Notifier.
func (s *Slack) Send(ctx context.Context, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}
