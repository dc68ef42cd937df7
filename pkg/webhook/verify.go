// Package webhook implements webhook signature verification and raw payload
// archiving. Verification gates all webhook processing: an event that does
// not verify is discarded before it can touch the ledger or trust metrics.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex HMAC-SHA256 signature of payload under secret.
// Processors send this value in their signature header; tests use it to
// build valid payloads.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature authenticates payload under secret. The
// comparison is timing safe. An empty secret fails closed: a processor
// without signing material configured cannot deliver webhooks.
func Verify(secret, payload []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}

	// Accept the common "sha256=<hex>" header form as well as bare hex.
	signature = strings.TrimPrefix(signature, "sha256=")

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}
