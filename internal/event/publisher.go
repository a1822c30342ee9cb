// Package event announces notification lifecycle events on the message bus.
package event

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	contractsmq "push-notification-service/contracts/mq"
	"push-notification-service/internal/model"
	"push-notification-service/pkg/circuitbreaker"
	"push-notification-service/pkg/logger"
	"push-notification-service/pkg/metrics"
)

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NotificationPublisher publishes notification.created through a circuit
// breaker so a dead broker costs one fast failure per request.
type NotificationPublisher struct {
	publisher Publisher
	breaker   *circuitbreaker.CircuitBreaker
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationPublisher(publisher Publisher, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration, logger *zap.Logger) *NotificationPublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NotificationPublisher{
		publisher: publisher,
		breaker:   breaker,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// PublishCreated implements service.EventPublisher.
func (p *NotificationPublisher) PublishCreated(ctx context.Context, n model.Notification) error {
	payload := contractsmq.NotificationCreatedPayload{
		NotificationID: n.ID,
		Amount:         n.Amount,
		Currency:       n.Currency,
		Text:           n.Text,
		CreatedAt:      n.CreatedAt,
		PublishedAt:    p.now().UTC(),
	}
	rk := contractsmq.RoutingKeyNotificationCreated

	// The row is committed; a client disconnect must not drop the event.
	err := p.breaker.Execute(func() error {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		return p.publisher.Publish(pubCtx, rk, payload)
	})

	switch {
	case err == nil:
		metrics.IncrementEventPublished(rk, "ok")
		logger.WithTrace(ctx, p.logger).Debug("Event published",
			zap.String("routing_key", rk),
			zap.Int64("notification_id", n.ID),
		)
	case errors.Is(err, circuitbreaker.ErrOpen):
		metrics.IncrementEventPublished(rk, "rejected")
	default:
		metrics.IncrementEventPublished(rk, "error")
	}
	return err
}
