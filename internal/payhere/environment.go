// Package payhere holds the PayHere gateway primitives: environments, hashing,
// status codes, order ids and the merchant API client.
package payhere

import (
	"fmt"
	"strings"
)

// Environment selects the PayHere deployment. The zero value is Sandbox.
type Environment int

const (
	Sandbox Environment = iota
	Live
)

// ParseEnvironment accepts "sandbox" or "live" (case-insensitive).
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sandbox":
		return Sandbox, nil
	case "live", "production":
		return Live, nil
	default:
		return Sandbox, fmt.Errorf("unknown payhere environment %q", s)
	}
}

func (e Environment) String() string {
	if e == Live {
		return "live"
	}
	return "sandbox"
}

// CheckoutURL is where the auto-submitting checkout form posts to.
func (e Environment) CheckoutURL() string {
	if e == Live {
		return "https://www.payhere.lk/pay/checkout"
	}
	return "https://sandbox.payhere.lk/pay/checkout"
}

// APIBaseURL is the merchant API root used for OAuth and payment retrieval.
func (e Environment) APIBaseURL() string {
	if e == Live {
		return "https://www.payhere.lk/merchant/v1"
	}
	return "https://sandbox.payhere.lk/merchant/v1"
}
