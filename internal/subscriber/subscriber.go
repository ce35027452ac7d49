// Package subscriber consumes purchase events from NATS JetStream and hands them to a Notifier.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

// Subscriber pulls purchase events from a durable JetStream consumer with a pool of workers.
type Subscriber struct {
	consumer jetstream.Consumer
	cfg      config.SubscriberConfig
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates or updates the durable consumer on stream. It fails when the stream does not exist.
func New(ctx context.Context, js jetstream.JetStream, stream string, cfg config.SubscriberConfig, notifier Notifier, logger *slog.Logger) (*Subscriber, error) {
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		FilterSubject: cfg.Subject,
		Durable:       cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s on stream %s: %w", cfg.Consumer, stream, err)
	}
	return &Subscriber{
		consumer: consumer,
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("notifier"),
	}, nil
}

// Run starts the workers and blocks until ctx is done or a worker fails.
func (s *Subscriber) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for range s.cfg.Workers {
		g.Go(func() error {
			return s.runWorker(gCtx)
		})
	}
	return g.Wait()
}

func (s *Subscriber) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := s.consumer.Fetch(s.cfg.Batch, jetstream.FetchMaxWait(s.cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			s.logger.Error("failed to fetch messages", "error", err)
			sleep(ctx, s.cfg.Interval)
			continue
		}
		for msg := range batch.Messages() {
			s.handleMessage(ctx, msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			s.logger.Warn("fetch finished with error", "error", err)
		}
	}
}

// handleMessage acks a delivered receipt, naks when the notifier fails so the message is
// redelivered, and terminates payloads that can never be decoded.
func (s *Subscriber) handleMessage(ctx context.Context, msg ackableMsg) {
	if msg == nil {
		s.logger.Error("received nil message")
		return
	}
	var event events.PurchaseCompletedEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		s.logger.Error("failed to unmarshal purchase event", "error", err)
		if err := msg.Term(); err != nil {
			s.logger.Error("failed to terminate message", "error", err)
		}
		return
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(event.Carrier))
	ctx, span := s.tracer.Start(ctx, "notify purchase",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("store.id", event.StoreID),
			attribute.Int64("purchase.id", event.PurchaseID),
		))
	defer span.End()

	if err := s.notifier.Notify(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to send purchase notification", "error", err, "purchase_id", event.PurchaseID)
		if err := msg.Nak(); err != nil {
			s.logger.ErrorContext(ctx, "failed to nack message", "error", err)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		s.logger.ErrorContext(ctx, "failed to ack message", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
