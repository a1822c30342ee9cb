package mq

import "time"

// RoutingKeyNotificationCreated is published after a notification is stored.
const RoutingKeyNotificationCreated = "notification.created"

type NotificationCreatedPayload struct {
	NotificationID int64     `json:"notification_id"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	PublishedAt    time.Time `json:"published_at"`
}
