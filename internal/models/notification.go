package models

import "time"

// Notification audiences.
const (
	AudienceAll     = "all"
	AudienceLawyers = "lawyers"
	AudienceClients = "clients"
)

// Notification is an admin broadcast.
type Notification struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Type           string    `json:"type"`
	TargetAudience string    `json:"target_audience"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserNotification is a notification delivered to one user.
type UserNotification struct {
	ID             int64      `json:"id"`
	NotificationID int64      `json:"notification_id"`
	UserID         int64      `json:"user_id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Type           string     `json:"type"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Recipient is a user a broadcast was fanned out to.
type Recipient struct {
	UserID   int64
	Email    string
	FullName string
}
