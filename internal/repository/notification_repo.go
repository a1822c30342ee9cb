package repository

import (
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"push-notification-service/internal/model"
	"push-notification-service/pkg/repository"
)

// NotificationTable is the table notifications are stored in.
const NotificationTable = "push_notifications"

// NotificationRepository is the data-access contract for notifications.
type NotificationRepository = repository.Repository[model.Notification, model.NotificationFields, model.NotificationUpdate]

// NewNotificationRepository binds the generic pgx repository to push_notifications.
func NewNotificationRepository(db repository.DB, logger *zap.Logger) NotificationRepository {
	return repository.New[model.Notification, model.NotificationFields, model.NotificationUpdate](
		db, notificationMapper{}, logger,
	)
}

type notificationMapper struct{}

func (notificationMapper) Table() string {
	return NotificationTable
}

func (notificationMapper) Columns() []string {
	return []string{"id", "amount", "currency", "text", "created_at"}
}

func (notificationMapper) Scan(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.Amount, &n.Currency, &n.Text, &n.CreatedAt)
	return n, err
}

func (notificationMapper) InsertValues(f model.NotificationFields) ([]string, []any) {
	cols := []string{"amount", "currency", "text"}
	vals := []any{f.Amount, f.Currency, f.Text}
	if !f.CreatedAt.IsZero() {
		cols = append(cols, "created_at")
		vals = append(vals, f.CreatedAt.UTC())
	}
	return cols, vals
}

func (notificationMapper) UpdateValues(u model.NotificationUpdate) ([]string, []any) {
	var (
		cols []string
		vals []any
	)
	if u.Amount != nil {
		cols = append(cols, "amount")
		vals = append(vals, *u.Amount)
	}
	if u.Currency != nil {
		cols = append(cols, "currency")
		vals = append(vals, *u.Currency)
	}
	if u.Text != nil {
		cols = append(cols, "text")
		vals = append(vals, *u.Text)
	}
	return cols, vals
}
