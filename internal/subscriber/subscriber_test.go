package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type mockAckableMsg struct {
	mock.Mock
}

func (m *mockAckableMsg) Data() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *mockAckableMsg) Ack() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockAckableMsg) Nak() error {
	args := m.Called()
	return args.Error(0)
}

func (m *mockAckableMsg) Term() error {
	args := m.Called()
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, event events.PurchaseCompletedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func testEvent() events.PurchaseCompletedEvent {
	return events.PurchaseCompletedEvent{
		EventID:      uuid.New(),
		StoreID:      "s1",
		CustomerID:   7,
		CustomerName: "Ann",
		PurchaseID:   11,
		TotalAmount:  "23.20",
		Items: []events.PurchasedItem{
			{PurchaseID: 11, ProductID: 1, ProductName: "Mug", Quantity: 2, Amount: "20.00"},
			{PurchaseID: 12, ProductID: 2, ProductName: "Sticker", Quantity: 1, Amount: "3.20"},
		},
		CreatedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestSubscriber(notifier Notifier) *Subscriber {
	return &Subscriber{
		notifier: notifier,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("test"),
	}
}

func Test_handleMessage(t *testing.T) {
	errGateway := errors.New("gateway down")
	testCases := []struct {
		name        string
		newMockMsg  func() *mockAckableMsg
		notifyErr   error
		expectCalls bool
	}{
		{
			name: "valid message is acked",
			newMockMsg: func() *mockAckableMsg {
				payload, _ := testEvent().Payload()
				msg := new(mockAckableMsg)
				msg.On("Data").Return(payload).Times(1)
				msg.On("Ack").Return(nil).Times(1)
				return msg
			},
			expectCalls: true,
		},
		{
			name: "notifier failure is nacked for redelivery",
			newMockMsg: func() *mockAckableMsg {
				payload, _ := testEvent().Payload()
				msg := new(mockAckableMsg)
				msg.On("Data").Return(payload).Times(1)
				msg.On("Nak").Return(nil).Times(1)
				return msg
			},
			notifyErr:   errGateway,
			expectCalls: true,
		},
		{
			name: "undecodable message is terminated",
			newMockMsg: func() *mockAckableMsg {
				msg := new(mockAckableMsg)
				msg.On("Data").Return([]byte("invalid data")).Times(1)
				msg.On("Term").Return(nil).Times(1)
				return msg
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			mockMsg := tc.newMockMsg()
			notifier := new(mockNotifier)
			if tc.expectCalls {
				notifier.On("Notify", mock.Anything, mock.AnythingOfType("events.PurchaseCompletedEvent")).Return(tc.notifyErr).Once()
			}
			s := newTestSubscriber(notifier)

			// when
			s.handleMessage(context.Background(), mockMsg)

			// then
			mockMsg.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func Test_handleMessage_DecodesEvent(t *testing.T) {
	// given
	event := testEvent()
	payload, err := event.Payload()
	require.NoError(t, err)
	msg := new(mockAckableMsg)
	msg.On("Data").Return(payload)
	msg.On("Ack").Return(nil)
	notifier := new(mockNotifier)
	var received events.PurchaseCompletedEvent
	notifier.On("Notify", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { received = args.Get(1).(events.PurchaseCompletedEvent) }).
		Return(nil)

	// when
	newTestSubscriber(notifier).handleMessage(context.Background(), msg)

	// then
	assert.Equal(t, event.EventID, received.EventID)
	assert.Equal(t, event.Items, received.Items)
	assert.True(t, event.CreatedAt.Equal(received.CreatedAt))
}

func TestLogNotifier_Notify(t *testing.T) {
	// given
	var buf bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
	event := testEvent()
	event.CustomerPhone = "555"

	// when
	err := notifier.Notify(context.Background(), event)

	// then
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "purchase receipt", line["msg"])
	assert.Equal(t, "s1", line["store_id"])
	assert.Equal(t, "23.20", line["total_amount"])
	assert.Equal(t, "555", line["customer_phone"])
	assert.Equal(t, float64(11), line["purchase_id"])
	items, ok := line["items"].(map[string]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	second := items["line_2"].(map[string]any)
	assert.Equal(t, "Sticker", second["product_name"])
	assert.Equal(t, "3.20", second["amount"])
}

func TestLogNotifier_OmitsMissingPhone(t *testing.T) {
	// given
	var buf bytes.Buffer
	notifier := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	// when
	require.NoError(t, notifier.Notify(context.Background(), testEvent()))

	// then
	assert.NotContains(t, buf.String(), "customer_phone")
}
