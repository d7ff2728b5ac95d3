package payhere

import (
	"strconv"
	"strings"
)

// Checkout form defaults; the users table carries no postal details.
const (
	DefaultPhone   = "0771234567"
	DefaultAddress = "Legal Consultation"
	DefaultCity    = "Colombo"
	DefaultCountry = "Sri Lanka"
	itemsPrefix    = "Legal Consultation - "
)

// Merchant is the account-level configuration needed to sign checkouts.
type Merchant struct {
	ID          string
	Secret      string
	Currency    string
	Environment Environment
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// Customer describes the paying client.
type Customer struct {
	ID       int64
	FullName string
	Email    string
}

// Field is a single hidden input of the checkout form.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CheckoutForm is an ordered set of fields posted to Action.
type CheckoutForm struct {
	Action string  `json:"action"`
	Fields []Field `json:"fields"`
}

// Map returns the form fields keyed by name.
func (f CheckoutForm) Map() map[string]string {
	m := make(map[string]string, len(f.Fields))
	for _, fl := range f.Fields {
		m[fl.Name] = fl.Value
	}
	return m
}

// SplitName splits on the first space into first and last name.
func SplitName(full string) (first, last string) {
	first, last, _ = strings.Cut(strings.TrimSpace(full), " ")
	return first, last
}

// Checkout builds the signed form for one order.
func (m Merchant) Checkout(orderID string, amountCents int64, queryID int64, queryTitle string, c Customer) CheckoutForm {
	first, last := SplitName(c.FullName)
	fields := []Field{
		{"merchant_id", m.ID},
		{"return_url", m.ReturnURL},
		{"cancel_url", m.CancelURL},
		{"notify_url", m.NotifyURL},
		{"first_name", first},
		{"last_name", last},
		{"email", c.Email},
		{"phone", DefaultPhone},
		{"address", DefaultAddress},
		{"city", DefaultCity},
		{"country", DefaultCountry},
		{"order_id", orderID},
		{"items", itemsPrefix + queryTitle},
		{"currency", m.Currency},
		{"amount", FormatAmount(amountCents)},
		{"hash", FormHash(m.ID, orderID, amountCents, m.Currency, m.Secret)},
		{"custom_1", strconv.FormatInt(queryID, 10)},
		{"custom_2", strconv.FormatInt(c.ID, 10)},
	}
	return CheckoutForm{Action: m.Environment.CheckoutURL(), Fields: fields}
}
