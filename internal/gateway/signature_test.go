// internal/gateway/signature_test.go
package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"status":"paid"}`)
	secret := "webhook-secret"

	sig := Sign(body, secret)
	assert.True(t, VerifySignature(body, sig, secret))
	assert.True(t, VerifySignature(body, "sha256="+sig, secret))

	assert.False(t, VerifySignature(body, sig, "other-secret"))
	assert.False(t, VerifySignature([]byte(`{"status":"refunded"}`), sig, secret))
	assert.False(t, VerifySignature(body, "", secret))
	assert.False(t, VerifySignature(body, "not-hex", secret))
}
