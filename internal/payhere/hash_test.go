package payhere

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testMerchant = "1211149"
	testSecret   = "test_secret"
	testOrder    = "CYB_5_1700000000_1234"
)

var upperHex32 = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestFormHash(t *testing.T) {
	got := FormHash(testMerchant, testOrder, 150000, "LKR", testSecret)
	assert.Equal(t, "6E913146A58B1A57D7381B243E811D67", got)
	assert.Regexp(t, upperHex32, got)
}

func TestFormHashChangesWithAmount(t *testing.T) {
	a := FormHash(testMerchant, testOrder, 150000, "LKR", testSecret)
	b := FormHash(testMerchant, testOrder, 150001, "LKR", testSecret)
	assert.NotEqual(t, a, b)
}

func TestNotificationSignature(t *testing.T) {
	got := NotificationSignature(testMerchant, testOrder, "1500.00", "LKR", "2", testSecret)
	assert.Equal(t, "3D9CF85660355FA798F69D0849AEA41A", got)
}

func TestVerifyNotification(t *testing.T) {
	n := Notification{
		MerchantID: testMerchant,
		OrderID:    testOrder,
		PaymentID:  "320025071278",
		Amount:     "1500.00",
		Currency:   "LKR",
		StatusCode: "2",
		MD5Sig:     "3d9cf85660355fa798f69d0849aea41a",
	}
	assert.True(t, VerifyNotification(n, testSecret), "lower-case signature is accepted")

	tampered := n
	tampered.StatusCode = "-2"
	assert.False(t, VerifyNotification(tampered, testSecret))

	wrongSig := n
	wrongSig.MD5Sig = "00000000000000000000000000000000"
	assert.False(t, VerifyNotification(wrongSig, testSecret))

	assert.False(t, VerifyNotification(n, "other_secret"))
}

func TestNotificationFromForm(t *testing.T) {
	form := map[string]string{
		"merchant_id":      testMerchant,
		"order_id":         testOrder,
		"payment_id":       "1",
		"payhere_amount":   "1500.00",
		"payhere_currency": "LKR",
		"status_code":      "2",
		"md5sig":           "X",
	}
	get := func(k string) string { return form[k] }

	n, missing := NotificationFromForm(get)
	assert.Empty(t, missing)
	assert.Equal(t, "unknown", n.Method)
	assert.Equal(t, testOrder, n.OrderID)

	delete(form, "md5sig")
	_, missing = NotificationFromForm(get)
	assert.Equal(t, "md5sig", missing)
}
