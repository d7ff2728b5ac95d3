package payhere

import "strings"

// Notification is the form posted by PayHere to notify_url.
type Notification struct {
	MerchantID string
	OrderID    string
	PaymentID  string
	Amount     string
	Currency   string
	StatusCode string
	MD5Sig     string
	Method     string
	Custom1    string
	Custom2    string
}

// RequiredFields lists the form keys a notification must carry.
var RequiredFields = []string{
	"merchant_id",
	"order_id",
	"payment_id",
	"payhere_amount",
	"payhere_currency",
	"status_code",
	"md5sig",
}

// NotificationFromForm builds a Notification using get to read form values.
// It returns the name of the first missing required field, if any.
func NotificationFromForm(get func(key string) string) (Notification, string) {
	for _, k := range RequiredFields {
		if strings.TrimSpace(get(k)) == "" {
			return Notification{}, k
		}
	}
	n := Notification{
		MerchantID: get("merchant_id"),
		OrderID:    get("order_id"),
		PaymentID:  get("payment_id"),
		Amount:     get("payhere_amount"),
		Currency:   get("payhere_currency"),
		StatusCode: get("status_code"),
		MD5Sig:     get("md5sig"),
		Method:     get("method"),
		Custom1:    get("custom_1"),
		Custom2:    get("custom_2"),
	}
	if n.Method == "" {
		n.Method = "unknown"
	}
	return n, ""
}
