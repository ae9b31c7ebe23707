// Package handlers composes the gateway's request/response cycle: method
// gate, JSON parsing, authentication, payload validation, the demo-mode
// configuration gate, the upstream call, and the response envelope. Every
// handler follows that same skeleton.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/common/utils"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
)

// HeaderCorrelationID is the inbound header carrying a caller-supplied
// correlation id.
const HeaderCorrelationID = "X-Correlation-ID"

// LeadPayload is the request body shared by the provider sync endpoints.
type LeadPayload struct {
	Email     string   `json:"email" validate:"required,email"`
	FirstName string   `json:"firstName" validate:"max=100"`
	LastName  string   `json:"lastName" validate:"max=100"`
	Phone     string   `json:"phone" validate:"max=32"`
	Source    string   `json:"source" validate:"max=100"`
	Tags      []string `json:"tags" validate:"max=20,dive,max=50"`
}

// Base carries the collaborators every handler shares.
type Base struct {
	Config   *config.Config
	Logger   logging.Logger
	Validate *validator.Validate
}

// NewBase wires the shared handler collaborators.
func NewBase(cfg *config.Config, logger logging.Logger) *Base {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Base{
		Config:   cfg,
		Logger:   logger,
		Validate: validator.New(),
	}
}

// CorrelationID resolves the request's correlation id, minting one when
// the caller did not supply it.
func (b *Base) CorrelationID(r *http.Request) string {
	if id := r.Header.Get(HeaderCorrelationID); id != "" {
		return id
	}
	return utils.MustGenerateCorrelationID()
}

// RequireMethod writes a 405 envelope and returns false when the request
// method does not match.
func (b *Base) RequireMethod(w http.ResponseWriter, r *http.Request, method, correlationID string) bool {
	if r.Method == method {
		return true
	}
	envelope.WriteError(w, errors.MethodNotAllowed(r.Method), correlationID)
	return false
}

// DecodeJSON parses the request body into dst, writing the INVALID_JSON
// envelope on failure.
func (b *Base) DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, correlationID string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		envelope.WriteError(w, errors.InvalidJSON(err), correlationID)
		return false
	}
	return true
}

// DecodeRawJSON parses pre-read body bytes, for handlers that verified a
// signature over the raw payload first.
func (b *Base) DecodeRawJSON(w http.ResponseWriter, body []byte, dst interface{}, correlationID string) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		envelope.WriteError(w, errors.InvalidJSON(err), correlationID)
		return false
	}
	return true
}

// ValidatePayload runs struct validation, writing a VALIDATION_ERROR
// envelope with per-field details on failure.
func (b *Base) ValidatePayload(w http.ResponseWriter, payload interface{}, correlationID string) bool {
	err := b.Validate.Struct(payload)
	if err == nil {
		return true
	}

	fieldErrors := make(map[string]interface{})
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrs {
			name := jsonFieldName(fieldErr)
			fieldErrors[name] = validationMessage(fieldErr)
		}
	}
	envelope.WriteError(w, errors.Validation("request payload failed validation", fieldErrors), correlationID)
	return false
}

// DemoGate writes the demo-mode envelope and returns true when the
// provider is unconfigured. A true return means the handler must not make
// any network calls.
func (b *Base) DemoGate(w http.ResponseWriter, provider config.Provider, correlationID string) bool {
	if b.Config.IsConfigured(provider) {
		return false
	}

	missing := b.Config.MissingKeys(provider)
	b.Logger.Info("Provider unconfigured, returning demo response",
		logging.String("provider", string(provider)),
		logging.Any("missing_config", missing),
		logging.String("correlation_id", correlationID),
	)

	envelope.WriteSuccess(w, "DEMO_MODE",
		"simulated success: provider credentials are not configured",
		correlationID,
		map[string]interface{}{
			"demoMode":      true,
			"provider":      string(provider),
			"missingConfig": missing,
		})
	return true
}

// RetryConfig builds the upstream retry policy from configuration.
func (b *Base) RetryConfig() utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts: b.Config.RetryAttempts(),
		BaseDelay:   b.Config.RetryDelay(),
		MaxDelay:    30 * time.Second,
		Logger:      b.Logger,
	}
}

// LogOutcome records the handler result with redaction applied by the
// logging layer.
func (b *Base) LogOutcome(handler, correlationID string, err error, fields ...logging.Field) {
	fields = append(fields,
		logging.String("handler", handler),
		logging.String("correlation_id", correlationID),
	)
	if err != nil {
		b.Logger.Error("Handler failed", err, fields...)
		return
	}
	b.Logger.Info("Handler succeeded", fields...)
}

// jsonFieldName lowercases the struct field's first letter to match the
// JSON casing used in payloads.
func jsonFieldName(fieldErr validator.FieldError) string {
	name := fieldErr.Field()
	if name == "" {
		return fieldErr.StructField()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// validationMessage renders one field error for the envelope details.
func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "exceeds the maximum allowed length"
	default:
		return "failed validation rule: " + fieldErr.Tag()
	}
}
