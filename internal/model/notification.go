package model

import "time"

// Notification is one row of push_notifications.
type Notification struct {
	ID        int64     `json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationFields are the values a new notification is created from.
// A zero CreatedAt leaves the timestamp to the database.
type NotificationFields struct {
	Amount    float64
	Currency  string
	Text      string
	CreatedAt time.Time
}

// NotificationUpdate holds the fields to change; nil means unchanged.
type NotificationUpdate struct {
	Amount   *float64
	Currency *string
	Text     *string
}

// IsEmpty reports whether the update changes nothing.
func (u NotificationUpdate) IsEmpty() bool {
	return u.Amount == nil && u.Currency == nil && u.Text == nil
}
