package payhere

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const orderPrefix = "CYB"

// NewOrderID returns CYB_{queryID}_{unix}_{1000..9999}.
func NewOrderID(queryID int64, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d_%d", orderPrefix, queryID, now.Unix(), 1000+rand.IntN(9000))
}

// QueryIDFromOrderID extracts the query id embedded in an order id.
func QueryIDFromOrderID(orderID string) (int64, bool) {
	parts := strings.Split(orderID, "_")
	if len(parts) != 4 || parts[0] != orderPrefix {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
