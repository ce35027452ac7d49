// Package messaging defines broker independent event publishing.
package messaging

import (
	"context"
)

// PurchasesCompletedSubject carries one event per committed purchase request.
const PurchasesCompletedSubject = "purchases.completed"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
