// Package pubsub announces finished crawls on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

// Notice is the payload published after a successful export.
type Notice struct {
	RunID         string    `json:"run_id"`
	CategoryTitle string    `json:"category_title"`
	CategoryPath  string    `json:"category_path"`
	Products      int       `json:"products"`
	Location      string    `json:"location"`
	Checksum      string    `json:"sha256"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Publish marshals the notice to JSON, publishes it and waits for the server
// to assign a message id.
func (p *Publisher) Publish(ctx context.Context, notice Notice) (string, error) {
	if p == nil || p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return "", fmt.Errorf("marshal notice: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id":   notice.RunID,
			"category": notice.CategoryPath,
		},
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish notice: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and releases the topic's goroutines.
func (p *Publisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}
