package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature is HMAC-SHA256 over "gatewayOrderRef|gatewayPaymentRef"
// with the shared key secret, hex encoded. This is what the gateway signs on
// the client confirmation callback.
func PaymentSignature(orderRef, paymentRef, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature compares in constant time.
func VerifyPaymentSignature(orderRef, paymentRef, signature, secret string) bool {
	want := PaymentSignature(orderRef, paymentRef, secret)
	return hmac.Equal([]byte(want), []byte(signature))
}

// VerifyWebhookSignature checks the gateway signature over the raw request
// body. The body must be the exact bytes received, before any JSON decode.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
