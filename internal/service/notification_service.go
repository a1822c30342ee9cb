package service

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"push-notification-service/internal/model"
	"push-notification-service/internal/repository"
	"push-notification-service/pkg/logger"
	"push-notification-service/pkg/metrics"
	"push-notification-service/pkg/otel"
)

const (
	opAdd    = "add_notification"
	opList   = "list_notifications"
	opGet    = "get_notification"
	opRandom = "random_notification"
	opUpdate = "update_notification"
	opDelete = "delete_notification"
)

// ListCache caches the result of ListNotifications.
type ListCache interface {
	GetList(ctx context.Context) ([]model.Notification, bool, error)
	SetList(ctx context.Context, items []model.Notification) error
	Invalidate(ctx context.Context) error
}

// EventPublisher announces stored notifications to other services.
type EventPublisher interface {
	PublishCreated(ctx context.Context, n model.Notification) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	cache     ListCache
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService wires the service. cache and publisher may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	cache ListCache,
	publisher EventPublisher,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// AddNotification stores a notification and returns its id.
func (s *NotificationService) AddNotification(ctx context.Context, fields model.NotificationFields) (id int64, err error) {
	ctx, done := s.span(ctx, opAdd)
	defer func() { done(err) }()
	log := logger.WithTrace(ctx, s.logger)

	if !isFinite(fields.Amount) {
		return 0, invalid(opAdd, "amount must be a finite number")
	}
	// PostgreSQL keeps microseconds; the event must carry the stored value.
	if fields.CreatedAt.IsZero() {
		fields.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	}

	id, err = s.repo.AddOne(ctx, fields)
	if err != nil {
		log.Error("Failed to add notification", zap.Error(err))
		return 0, storageFailure(opAdd, err)
	}

	metrics.IncrementNotificationCreated()
	s.invalidate(ctx, log)

	if s.publisher != nil {
		n := model.Notification{
			ID:        id,
			Amount:    fields.Amount,
			Currency:  fields.Currency,
			Text:      fields.Text,
			CreatedAt: fields.CreatedAt,
		}
		if pubErr := s.publisher.PublishCreated(ctx, n); pubErr != nil {
			// 记录已落库，事件发布失败不影响请求结果
			log.Warn("Failed to publish notification.created",
				zap.Int64("id", id),
				zap.Error(pubErr),
			)
		}
	}

	log.Info("Notification added",
		zap.Int64("id", id),
		zap.String("currency", fields.Currency),
	)
	return id, nil
}

// ListNotifications returns every stored notification.
func (s *NotificationService) ListNotifications(ctx context.Context) (items []model.Notification, err error) {
	ctx, done := s.span(ctx, opList)
	defer func() { done(err) }()
	log := logger.WithTrace(ctx, s.logger)

	if s.cache != nil {
		cached, ok, cacheErr := s.cache.GetList(ctx)
		switch {
		case cacheErr != nil:
			log.Warn("Notification cache read failed, falling back to database", zap.Error(cacheErr))
		case ok:
			return cached, nil
		}
	}

	items, err = s.repo.FindAll(ctx)
	if err != nil {
		log.Error("Failed to list notifications", zap.Error(err))
		return nil, storageFailure(opList, err)
	}

	if s.cache != nil {
		if cacheErr := s.cache.SetList(ctx, items); cacheErr != nil {
			log.Warn("Notification cache write failed", zap.Error(cacheErr))
		}
	}
	return items, nil
}

// GetNotification returns the notification with the given id.
func (s *NotificationService) GetNotification(ctx context.Context, id int64) (n model.Notification, err error) {
	ctx, done := s.span(ctx, opGet)
	defer func() { done(err) }()

	n, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Notification{}, s.storageFailure(ctx, opGet, err)
	}
	return n, nil
}

// RandomNotification returns one stored notification chosen at random.
func (s *NotificationService) RandomNotification(ctx context.Context) (n model.Notification, err error) {
	ctx, done := s.span(ctx, opRandom)
	defer func() { done(err) }()

	n, err = s.repo.FindRandom(ctx)
	if err != nil {
		return model.Notification{}, s.storageFailure(ctx, opRandom, err)
	}
	return n, nil
}

// UpdateNotification changes the given fields of a notification.
func (s *NotificationService) UpdateNotification(ctx context.Context, id int64, update model.NotificationUpdate) (n model.Notification, err error) {
	ctx, done := s.span(ctx, opUpdate)
	defer func() { done(err) }()
	log := logger.WithTrace(ctx, s.logger)

	if update.IsEmpty() {
		return model.Notification{}, invalid(opUpdate, "no fields to update")
	}
	if update.Amount != nil && !isFinite(*update.Amount) {
		return model.Notification{}, invalid(opUpdate, "amount must be a finite number")
	}

	n, err = s.repo.EditOne(ctx, id, update)
	if err != nil {
		return model.Notification{}, s.storageFailure(ctx, opUpdate, err)
	}

	s.invalidate(ctx, log)
	log.Info("Notification updated", zap.Int64("id", id))
	return n, nil
}

// DeleteNotification removes a notification and reports whether it existed.
func (s *NotificationService) DeleteNotification(ctx context.Context, id int64) (deleted bool, err error) {
	ctx, done := s.span(ctx, opDelete)
	defer func() { done(err) }()
	log := logger.WithTrace(ctx, s.logger)

	deleted, err = s.repo.DeleteOne(ctx, id)
	if err != nil {
		return false, s.storageFailure(ctx, opDelete, err)
	}

	if deleted {
		s.invalidate(ctx, log)
		log.Info("Notification deleted", zap.Int64("id", id))
	} else {
		log.Info("Notification not found or already deleted", zap.Int64("id", id))
	}
	return deleted, nil
}

func (s *NotificationService) storageFailure(ctx context.Context, op string, err error) error {
	appErr := storageFailure(op, err)
	if appErr.Kind != KindNotFound {
		logger.WithTrace(ctx, s.logger).Error("Storage failure", zap.String("op", op), zap.Error(err))
	}
	return appErr
}

func (s *NotificationService) invalidate(ctx context.Context, log *zap.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn("Failed to invalidate notification cache", zap.Error(err))
	}
}

func (s *NotificationService) span(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := otel.StartSpan(ctx, "service."+op)
	return ctx, func(err error) {
		if err != nil {
			span.SetAttributes(attribute.String("error.kind", string(KindOf(err))))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
