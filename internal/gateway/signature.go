// internal/gateway/signature.go
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex HMAC-SHA256 of body under secret. Used both to
// verify inbound gateway signatures and to sign outbound seller webhooks.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Webhook-Signature style header against the
// raw body. Accepts an optional "sha256=" prefix. Verification here is
// soft: callers log a mismatch but do not reject the request, so traffic
// from gateways with inconsistent signing is not dropped.
func VerifySignature(body []byte, header, secret string) bool {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if header == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}
