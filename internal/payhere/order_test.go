package payhere

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	re := regexp.MustCompile(`^CYB_5_1700000000_[1-9][0-9]{3}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, NewOrderID(5, now))
	}
}

func TestQueryIDFromOrderID(t *testing.T) {
	id, ok := QueryIDFromOrderID("CYB_42_1700000000_1234")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = QueryIDFromOrderID("ORD_42_1_1")
	assert.False(t, ok)
	_, ok = QueryIDFromOrderID("CYB_x_1_1")
	assert.False(t, ok)
}
