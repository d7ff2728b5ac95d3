package models

import "time"

// QueryStatus is the consultation lifecycle state.
type QueryStatus string

const (
	QueryStatusPending    QueryStatus = "pending"
	QueryStatusAssigned   QueryStatus = "assigned"
	QueryStatusInProgress QueryStatus = "in_progress"
	QueryStatusCompleted  QueryStatus = "completed"
	QueryStatusCancelled  QueryStatus = "cancelled"
)

// Urgency levels, high first in lawyer queues.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// Query payment_status mirrors the latest successful payment.
const (
	QueryPaymentPending   = "pending"
	QueryPaymentCompleted = "completed"
)

// LegalQuery is a client's legal question routed to a lawyer.
type LegalQuery struct {
	ID                 int64       `json:"id"`
	ClientID           int64       `json:"client_id"`
	LawyerID           *int64      `json:"lawyer_id,omitempty"`
	Category           string      `json:"category"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	UrgencyLevel       string      `json:"urgency_level"`
	Status             QueryStatus `json:"status"`
	PaymentAmountCents int64       `json:"payment_amount_cents"`
	PaymentStatus      string      `json:"payment_status"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`

	ClientName  string `json:"client_name,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	LawyerName  string `json:"lawyer_name,omitempty"`
}

// IsParticipant reports whether userID is the client or the assigned lawyer.
func (q *LegalQuery) IsParticipant(userID int64) bool {
	return q.ClientID == userID || (q.LawyerID != nil && *q.LawyerID == userID)
}

// IsPaid reports whether the consultation fee has been received.
func (q *LegalQuery) IsPaid() bool {
	return q.PaymentStatus == QueryPaymentCompleted
}

// Category is a legal area a query can be filed under.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
