package payhere

import "github.com/cyblex/backend/internal/models"

var statusCodes = map[string]models.PaymentStatus{
	"2":  models.PaymentStatusSuccess,
	"0":  models.PaymentStatusPending,
	"-1": models.PaymentStatusCancelled,
	"-2": models.PaymentStatusFailed,
	"-3": models.PaymentStatusChargedback,
}

// StatusFromCode maps a PayHere status_code to a payment status.
// ok is false for codes PayHere does not document.
func StatusFromCode(code string) (status models.PaymentStatus, ok bool) {
	status, ok = statusCodes[code]
	return status, ok
}

var descriptions = map[models.PaymentStatus]string{
	models.PaymentStatusPending:     "Payment is pending confirmation",
	models.PaymentStatusSuccess:     "Payment completed successfully",
	models.PaymentStatusCancelled:   "Payment was cancelled",
	models.PaymentStatusFailed:      "Payment failed",
	models.PaymentStatusChargedback: "Payment was charged back",
}

// Describe returns a human-readable description of a payment status.
func Describe(status models.PaymentStatus) string {
	if d, ok := descriptions[status]; ok {
		return d
	}
	return "Unknown payment status"
}
