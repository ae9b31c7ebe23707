package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateRandomID generates a cryptographically secure random hex ID of
// the given length. Each byte yields two hex characters, so odd lengths
// come back one character short.
func GenerateRandomID(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateCorrelationID generates an opaque correlation id in the format
// "req-{randomHex}-{unixTimestamp}". Minted once per request when the
// caller did not supply one, threaded through logs and the response body.
func GenerateCorrelationID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}

// MustGenerateCorrelationID generates a correlation id or panics on
// failure, which indicates a broken system random source.
func MustGenerateCorrelationID() string {
	id, err := GenerateCorrelationID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate correlation ID: %v", err))
	}
	return id
}
