package signature

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	payload := []byte(`{"email":"test@example.com"}`)
	secret := "shared-secret"

	sig := Sign(payload, secret)

	assert.True(t, Verify(payload, sig, secret))
}

func TestVerify_MutatedPayload(t *testing.T) {
	payload := []byte(`{"email":"test@example.com"}`)
	secret := "shared-secret"
	sig := Sign(payload, secret)

	mutated := bytes.Clone(payload)
	mutated[0] ^= 0x01

	assert.False(t, Verify(mutated, sig, secret))
}

func TestVerify_MutatedSignature(t *testing.T) {
	payload := []byte(`{"email":"test@example.com"}`)
	secret := "shared-secret"
	sig := []byte(Sign(payload, secret))
	sig[0] ^= 0x01

	assert.False(t, Verify(payload, string(sig), secret))
}

func TestVerify_WrongSecret(t *testing.T) {
	payload := []byte(`payload`)
	sig := Sign(payload, "secret-a")

	assert.False(t, Verify(payload, sig, "secret-b"))
}

func TestVerify_AbsentInputs(t *testing.T) {
	payload := []byte(`payload`)

	assert.False(t, Verify(payload, "", "secret"))
	assert.False(t, Verify(payload, Sign(payload, "secret"), ""))
	assert.False(t, Verify(payload, "", ""))
}

func TestFromRequest(t *testing.T) {
	t.Run("webhook signature header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set(HeaderWebhookSignature, "abc123")
		assert.Equal(t, "abc123", FromRequest(r))
	})

	t.Run("hub signature with prefix", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set(HeaderHubSignature256, "sha256=deadbeef")
		assert.Equal(t, "deadbeef", FromRequest(r))
	})

	t.Run("webhook header takes precedence", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		r.Header.Set(HeaderWebhookSignature, "first")
		r.Header.Set(HeaderHubSignature256, "second")
		assert.Equal(t, "first", FromRequest(r))
	})

	t.Run("no headers", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", nil)
		assert.Equal(t, "", FromRequest(r))
	})
}

func TestPreserveRequestBody(t *testing.T) {
	payload := []byte(`{"key":"value"}`)
	r := httptest.NewRequest("POST", "/", bytes.NewReader(payload))

	body, err := PreserveRequestBody(r)
	require.NoError(t, err)
	assert.Equal(t, payload, body)

	// The body must still be readable after preservation.
	again, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}
