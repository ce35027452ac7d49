package subscriber

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	pnats "github.com/abgdnv/storefront/pkg/nats"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"golang.org/x/sync/errgroup"
)

// skipIntegrationTests is the environment variable that controls whether to skip integration tests.
const skipIntegrationTests = "NOTIFIER_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

type SubscriberSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	js            jetstream.JetStream
}

func (s *SubscriberSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.js, err = pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")
}

func (s *SubscriberSuite) TearDownSuite() {
	s.nc.Close()
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func TestSubscriberIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(SubscriberSuite))
}

// recordingNotifier keeps every delivered event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []events.PurchaseCompletedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event events.PurchaseCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func (s *SubscriberSuite) TestReceiveMessage() {
	testCases := []struct {
		name     string
		payloads func() [][]byte
		notified int
	}{
		{
			name: "valid events are delivered and acked",
			payloads: func() [][]byte {
				first, _ := testEvent().Payload()
				second, _ := testEvent().Payload()
				return [][]byte{first, second}
			},
			notified: 2,
		},
		{
			name: "invalid payload does not stop the worker",
			payloads: func() [][]byte {
				valid, _ := testEvent().Payload()
				return [][]byte{[]byte("invalid payload"), valid}
			},
			notified: 1,
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// given
			streamName := "STREAM_" + uuid.NewString()[:8]
			subject := "purchases." + uuid.NewString()
			consumerName := "CONSUMER_" + uuid.NewString()[:8]
			_, err := pnats.EnsureStream(s.ctx, s.js, streamName, subject)
			s.Require().NoError(err)

			notifier := &recordingNotifier{}
			cfg := config.SubscriberConfig{
				Subject:  subject,
				Consumer: consumerName,
				Batch:    5,
				Timeout:  200 * time.Millisecond,
				Interval: 200 * time.Millisecond,
				Workers:  2,
			}
			sub, err := New(s.ctx, s.js, streamName, cfg, notifier, s.logger)
			s.Require().NoError(err)

			ctx, cancel := context.WithCancel(s.ctx)
			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error { return sub.Run(gCtx) })
			defer func() {
				cancel()
				_ = g.Wait()
			}()

			// when
			for _, payload := range tc.payloads() {
				_, err := s.js.Publish(s.ctx, subject, payload)
				s.Require().NoError(err)
			}

			// then
			s.Require().Eventually(func() bool {
				info, err := sub.consumer.Info(s.ctx)
				if err != nil {
					return false
				}
				return notifier.count() == tc.notified && info.NumPending == 0 && info.NumAckPending == 0
			}, 5*time.Second, 100*time.Millisecond, "messages were not processed")
		})
	}
}
