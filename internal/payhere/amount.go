package payhere

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidAmount is returned by ParseAmount for malformed input.
var ErrInvalidAmount = errors.New("invalid amount")

// FormatAmount renders cents as the 2-decimal string PayHere signs, e.g. 150000 -> "1500.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount converts "1500", "1500.5" or "1500.00" to cents.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		c, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
		cents = c
	}
	return units*100 + cents, nil
}

// CentsFromFloat rounds a major-unit amount to cents.
func CentsFromFloat(v float64) int64 {
	return int64(math.Round(v * 100))
}

// CoerceAmount converts a loosely typed amount (JSON number, numeric string, int) to cents.
func CoerceAmount(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		return CentsFromFloat(n), nil
	case float32:
		return CentsFromFloat(float64(n)), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ParseAmount(s)
}
