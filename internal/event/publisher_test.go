package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	contractsmq "push-notification-service/contracts/mq"
	"push-notification-service/internal/model"
	"push-notification-service/pkg/circuitbreaker"
	"push-notification-service/pkg/trace"
)

type recordedMessage struct {
	routingKey string
	payload    any
	traceID    string
	deadline   bool
	ctxErr     error
}

type fakeBus struct {
	messages []recordedMessage
	err      error
}

func (b *fakeBus) Publish(ctx context.Context, routingKey string, payload any) error {
	_, hasDeadline := ctx.Deadline()
	b.messages = append(b.messages, recordedMessage{
		routingKey: routingKey,
		payload:    payload,
		traceID:    trace.FromContext(ctx),
		deadline:   hasDeadline,
		ctxErr:     ctx.Err(),
	})
	return b.err
}

func TestNotificationPublisher_PublishCreated(t *testing.T) {
	bus := &fakeBus{}
	p := NewNotificationPublisher(bus, circuitbreaker.New(circuitbreaker.DefaultConfig()), time.Second, zaptest.NewLogger(t))
	publishedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return publishedAt }

	ctx := trace.WithContext(context.Background(), "trace-1")
	err := p.PublishCreated(ctx, model.Notification{ID: 7, Amount: 49.99, Currency: "USD", Text: "Payment received"})
	require.NoError(t, err)

	require.Len(t, bus.messages, 1)
	msg := bus.messages[0]
	assert.Equal(t, "notification.created", msg.routingKey)
	assert.Equal(t, "trace-1", msg.traceID)
	assert.True(t, msg.deadline)
	assert.Equal(t, contractsmq.NotificationCreatedPayload{
		NotificationID: 7,
		Amount:         49.99,
		Currency:       "USD",
		Text:           "Payment received",
		PublishedAt:    publishedAt,
	}, msg.payload)
}

func TestNotificationPublisher_BreakerOpensOnRepeatedFailures(t *testing.T) {
	bus := &fakeBus{err: errors.New("channel/connection is not open")}
	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, OpenTimeout: time.Minute})
	p := NewNotificationPublisher(bus, breaker, time.Second, zaptest.NewLogger(t))

	n := model.Notification{ID: 1, Amount: 1, Currency: "USD", Text: "x"}
	assert.ErrorIs(t, p.PublishCreated(context.Background(), n), bus.err)
	assert.ErrorIs(t, p.PublishCreated(context.Background(), n), bus.err)

	err := p.PublishCreated(context.Background(), n)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Len(t, bus.messages, 2)
}

func TestNotificationPublisher_SurvivesCanceledRequest(t *testing.T) {
	bus := &fakeBus{}
	p := NewNotificationPublisher(bus, circuitbreaker.New(circuitbreaker.DefaultConfig()), time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(trace.WithContext(context.Background(), "trace-2"))
	cancel()

	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.PublishCreated(ctx, model.Notification{ID: 9, Amount: 1, Currency: "USD", Text: "x", CreatedAt: createdAt})
	require.NoError(t, err)

	require.Len(t, bus.messages, 1)
	msg := bus.messages[0]
	assert.NoError(t, msg.ctxErr)
	assert.True(t, msg.deadline)
	assert.Equal(t, "trace-2", msg.traceID)
	assert.Equal(t, createdAt, msg.payload.(contractsmq.NotificationCreatedPayload).CreatedAt)
}
