package pixclient

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"status":"PAID","txid":"abc"}`)

	h := sha256.Sum256(append([]byte(secret), body...))
	want := base64.StdEncoding.EncodeToString(h[:])

	assert.Equal(t, want, Sign(secret, body))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"status":"PAID","txid":"abc"}`)
	sig := Sign(secret, body)

	assert.True(t, VerifySignature(secret, body, sig))
	assert.False(t, VerifySignature(secret, body, "tampered"))
	assert.False(t, VerifySignature(secret, body, ""))
	assert.False(t, VerifySignature("other-secret", body, sig))
	assert.False(t, VerifySignature(secret, []byte(`{"status":"PAID","txid":"xyz"}`), sig))
}
