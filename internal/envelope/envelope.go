// Package envelope defines the uniform JSON response shape every endpoint
// returns. The ok flag always agrees with the HTTP status class: ok is
// true exactly when the status is 2xx.
package envelope

import (
	"encoding/json"
	"net/http"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
)

// HeaderCorrelationID echoes the request's correlation id on every response.
const HeaderCorrelationID = "X-Correlation-ID"

// Response is the wire shape of every gateway reply.
type Response struct {
	OK            bool                   `json:"ok"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CorrelationID string                 `json:"correlationId"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Success builds a 2xx envelope.
func Success(code, message, correlationID string, metadata map[string]interface{}) *Response {
	return &Response{
		OK:            true,
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Metadata:      metadata,
	}
}

// FromError builds a failure envelope from a classified error.
func FromError(err error, correlationID string) (*Response, int) {
	appErr := errors.AsAppError(err)
	return &Response{
		OK:            false,
		Code:          string(appErr.Code),
		Message:       appErr.Message,
		Details:       appErr.Details,
		CorrelationID: correlationID,
	}, appErr.HTTPStatus()
}

// Write serializes the envelope with the given status. The correlation id
// is mirrored into the X-Correlation-ID header so clients that drop the
// body can still join logs.
func Write(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.CorrelationID != "" {
		w.Header().Set(HeaderCorrelationID, resp.CorrelationID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn("Failed to encode response envelope", logging.Err(err))
	}
}

// WriteSuccess is shorthand for the common 200 path.
func WriteSuccess(w http.ResponseWriter, code, message, correlationID string, metadata map[string]interface{}) {
	Write(w, http.StatusOK, Success(code, message, correlationID, metadata))
}

// WriteError classifies err and writes the matching failure envelope.
func WriteError(w http.ResponseWriter, err error, correlationID string) {
	resp, status := FromError(err, correlationID)
	Write(w, status, resp)
}
