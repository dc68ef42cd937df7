package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"event":"payment.succeeded","id":"evt_1"}`)

	t.Run("ValidSignature", func(t *testing.T) {
		assert.True(t, Verify(secret, payload, Sign(secret, payload)))
	})

	t.Run("Sha256Prefix", func(t *testing.T) {
		assert.True(t, Verify(secret, payload, "sha256="+Sign(secret, payload)))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		assert.False(t, Verify([]byte("other"), payload, Sign(secret, payload)))
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		sig := Sign(secret, payload)
		assert.False(t, Verify(secret, []byte(`{"event":"payment.succeeded","id":"evt_2"}`), sig))
	})

	t.Run("EmptySecretFailsClosed", func(t *testing.T) {
		// No signing material configured means no webhook can verify.
		assert.False(t, Verify(nil, payload, Sign(secret, payload)))
		assert.False(t, Verify([]byte{}, payload, Sign([]byte{}, payload)))
	})

	t.Run("EmptySignature", func(t *testing.T) {
		assert.False(t, Verify(secret, payload, ""))
	})

	t.Run("MalformedHex", func(t *testing.T) {
		assert.False(t, Verify(secret, payload, "not-hex!"))
	})
}
