package models

import "time"

// Message is a chat line on a query.
type Message struct {
	ID          int64     `json:"id"`
	QueryID     int64     `json:"query_id"`
	SenderID    int64     `json:"sender_id"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
	SenderName  string    `json:"sender_name"`
	SenderType  UserType  `json:"sender_type"`
	DisplayName string    `json:"display_name"`
	IsOwn       bool      `json:"is_own"`
}

// ForViewer fills DisplayName and IsOwn as seen by viewerID. A zero viewer gets the
// neutral form used for room broadcasts.
func (m *Message) ForViewer(viewerID int64) {
	m.IsOwn = viewerID != 0 && m.SenderID == viewerID
	switch {
	case m.IsOwn:
		m.DisplayName = "You"
	case m.SenderType == UserTypeLawyer:
		m.DisplayName = "Lawyer: " + m.SenderName
	default:
		m.DisplayName = m.SenderName
	}
}
