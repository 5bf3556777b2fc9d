package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// PubSub publishes messages to a Google Cloud Pub/Sub topic, for deployments
// that fan notifications out to downstream consumers instead of a chat
// channel.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub connects a Pub/Sub client and binds the topic.
func NewPubSub(ctx context.Context, projectID, topicID string) (*PubSub, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSub{client: client, topic: client.Topic(topicID)}, nil
}

type pubsubPayload struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Send implements scraper.Notifier.
func (p *PubSub) Send(ctx context.Context, message string) error {
	data, err := json.Marshal(pubsubPayload{Message: message, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal pubsub payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
