package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

var _ messaging.Publisher = (*NatsPublisher)(nil)

type NatsPublisher struct {
	js          jetstream.JetStream
	maxAttempts int
	retryWait   time.Duration
}

// NewNatsPublisher publishes with JetStream acks, retrying up to maxAttempts when no ack arrives.
func NewNatsPublisher(js jetstream.JetStream, maxAttempts int, retryWait time.Duration) *NatsPublisher {
	return &NatsPublisher{js: js, maxAttempts: maxAttempts, retryWait: retryWait}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	_, err = p.js.Publish(ctx, event.Subject(), data,
		jetstream.WithRetryAttempts(p.maxAttempts),
		jetstream.WithRetryWait(p.retryWait),
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", event.Subject(), err)
	}
	return nil
}
