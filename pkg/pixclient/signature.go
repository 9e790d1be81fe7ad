package pixclient

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Sign computes the webhook signature the provider sends with callbacks:
// base64(sha256(secret + rawBody)).
func Sign(secret string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature checks an inbound webhook signature in constant time.
func VerifySignature(secret string, body []byte, received string) bool {
	if received == "" {
		return false
	}
	expected := Sign(secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
