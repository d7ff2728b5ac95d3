package payhere

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// FormHash signs the checkout form:
// UPPER(MD5(merchant_id + order_id + amount + currency + UPPER(MD5(secret)))).
func FormHash(merchantID, orderID string, amountCents int64, currency, secret string) string {
	return upperMD5(merchantID + orderID + FormatAmount(amountCents) + currency + upperMD5(secret))
}

// NotificationSignature is the md5sig PayHere attaches to notify_url callbacks.
// Amount and currency are the raw strings echoed by the gateway.
func NotificationSignature(merchantID, orderID, payhereAmount, payhereCurrency, statusCode, secret string) string {
	return upperMD5(merchantID + orderID + payhereAmount + payhereCurrency + statusCode + upperMD5(secret))
}

// VerifyNotification recomputes the signature and compares it with md5sig.
func VerifyNotification(n Notification, secret string) bool {
	expected := NotificationSignature(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, secret)
	got := strings.ToUpper(strings.TrimSpace(n.MD5Sig))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
