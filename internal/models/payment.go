package models

import "time"

// PaymentStatus of a single payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusSuccess     PaymentStatus = "success"
	PaymentStatusFailed      PaymentStatus = "failed"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusChargedback PaymentStatus = "chargedback"
)

// PaymentMethodPayHere is recorded when a checkout is initialized.
const PaymentMethodPayHere = "payhere"

// Payment is one attempt to pay for a query. Rows are never deleted.
type Payment struct {
	ID               int64         `json:"id"`
	QueryID          int64         `json:"query_id"`
	AmountCents      int64         `json:"amount_cents"`
	Amount           string        `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"payment_status"`
	Method           string        `json:"payment_method"`
	OrderID          string        `json:"order_id"`
	GatewayPaymentID string        `json:"payhere_payment_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
