// Package signature verifies webhook authenticity with HMAC-SHA256 over
// the exact raw request body.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
)

// Header names consulted for inbound signatures, in order.
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderHubSignature256  = "X-Hub-Signature-256"
)

// Sign computes the hex-encoded HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the supplied signature against the HMAC-SHA256 of the raw
// payload. It returns false, never an error, when the secret or signature
// is absent; callers treat that as "check skipped" vs. "mismatch"
// depending on what is configured. Comparison is constant time.
func Verify(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// FromRequest extracts the signature from the request headers. The
// GitHub-style X-Hub-Signature-256 header carries a "sha256=" prefix that
// is stripped; X-Webhook-Signature is bare hex.
func FromRequest(r *http.Request) string {
	if sig := r.Header.Get(HeaderWebhookSignature); sig != "" {
		return strings.TrimPrefix(sig, "sha256=")
	}
	if sig := r.Header.Get(HeaderHubSignature256); sig != "" {
		return strings.TrimPrefix(sig, "sha256=")
	}
	return ""
}

// PreserveRequestBody reads the request body and replaces it with a fresh
// reader so later JSON decoding still works. Verification must run over
// the exact bytes received.
func PreserveRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
