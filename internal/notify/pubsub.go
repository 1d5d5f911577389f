package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/brandpulse/scout/internal/scrape"
)

// PubSubNotifier publishes job updates to a Google Cloud Pub/Sub topic.
// Downstream services fan the updates out to websocket clients.
type PubSubNotifier struct {
	topic *pubsub.Topic
	clock scrape.Clock
}

// NewPubSubNotifier creates a notifier for the provided topic.
func NewPubSubNotifier(topic *pubsub.Topic, clock scrape.Clock) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &PubSubNotifier{topic: topic, clock: clock}, nil
}

// Broadcast marshals the update to JSON and publishes it.
func (n *PubSubNotifier) Broadcast(ctx context.Context, jobID, ownerID string, status scrape.JobStatus, progress int, message string) error {
	data, err := json.Marshal(Message{
		JobID:     jobID,
		OwnerID:   ownerID,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Timestamp: n.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id": jobID,
			"status": string(status),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

// Stop flushes pending publishes.
func (n *PubSubNotifier) Stop() {
	n.topic.Stop()
}
