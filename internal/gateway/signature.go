package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the hex HMAC-SHA256 signature the provider attaches
// to payment callbacks: the MAC over "<remoteOrderID>|<remotePaymentID>".
// Exported so tests and tooling can produce valid callbacks.
func SignPayload(secret []byte, remoteOrderID, remotePaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(remoteOrderID + "|" + remotePaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a callback signature in constant time.
func VerifySignature(secret []byte, remoteOrderID, remotePaymentID, signature string) bool {
	expected := SignPayload(secret, remoteOrderID, remotePaymentID)
	return hmac.Equal([]byte(signature), []byte(expected))
}
