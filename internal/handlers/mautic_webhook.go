package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/normalize"
	"crm-gateway/internal/providers/leadingest"
	"crm-gateway/internal/signature"
)

// mauticEventTypes maps Mautic webhook event names to the types reported
// in the aggregate summary.
var mauticEventTypes = map[string]string{
	"lead_post_save_new":                "new_contact",
	"lead_post_save_update":             "updated_contact",
	"email_on_open":                     "open",
	"email_on_bounce":                   "bounce",
	"lead_channel_subscription_changed": "subscription_change",
	"lead_post_delete":                  "deleted_contact",
}

// mauticEvent is the subset of one embedded webhook event the gateway
// reads. Mautic nests the contact under either "lead" or "contact"
// depending on the event family.
type mauticEvent struct {
	Lead    *mauticContact `json:"lead"`
	Contact *mauticContact `json:"contact"`
}

type mauticContact struct {
	ID     int                    `json:"id"`
	Email  string                 `json:"email"`
	Fields map[string]interface{} `json:"fields"`
}

// eventResult is one entry in the aggregate summary.
type eventResult struct {
	Type      string `json:"type"`
	ContactID int    `json:"contactId,omitempty"`
	Email     string `json:"email,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// MauticWebhookHandler receives Mautic's webhook deliveries. Each delivery
// embeds one or more event arrays keyed "mautic.<event>"; events are
// processed independently and the response is an aggregate summary.
// Partial failure still returns 200 so Mautic's redelivery mechanism is
// not triggered by one bad sub-event among many.
type MauticWebhookHandler struct {
	*Base
	forwarder *leadingest.Client
}

// NewMauticWebhookHandler wires the Mautic webhook receiver. forwarder may
// be nil when no ingest URL is configured.
func NewMauticWebhookHandler(base *Base, forwarder *leadingest.Client) *MauticWebhookHandler {
	return &MauticWebhookHandler{Base: base, forwarder: forwarder}
}

func (h *MauticWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := h.CorrelationID(r)

	if !h.RequireMethod(w, r, http.MethodPost, correlationID) {
		return
	}

	body, err := signature.PreserveRequestBody(r)
	if err != nil {
		envelope.WriteError(w, errors.Internal("failed to read request body", err), correlationID)
		return
	}

	// Signature verification runs only when a secret is configured; an
	// unconfigured secret means the check is skipped, not failed.
	if h.Config.WebhookHMACSecret != "" {
		if !signature.Verify(body, signature.FromRequest(r), h.Config.WebhookHMACSecret) {
			h.LogOutcome("mautic_webhook", correlationID, errors.InvalidSignature())
			envelope.WriteError(w, errors.InvalidSignature(), correlationID)
			return
		}
	}

	var delivery map[string]json.RawMessage
	if !h.DecodeRawJSON(w, body, &delivery, correlationID) {
		return
	}

	received, processed := 0, 0
	var results []eventResult

	for key, raw := range delivery {
		eventName, ok := strings.CutPrefix(key, "mautic.")
		if !ok {
			continue
		}

		var events []mauticEvent
		if err := json.Unmarshal(raw, &events); err != nil {
			received++
			results = append(results, eventResult{
				Type:   eventName,
				Status: "failed",
				Error:  "malformed event array",
			})
			continue
		}

		for _, event := range events {
			received++
			results = append(results, h.processEvent(r, eventName, event, correlationID))
		}
	}

	for _, result := range results {
		if result.Status == "processed" {
			processed++
		}
	}
	failed := received - processed

	h.LogOutcome("mautic_webhook", correlationID, nil,
		logging.Int("events_received", received),
		logging.Int("events_processed", processed),
		logging.Int("events_failed", failed),
	)

	metadata := map[string]interface{}{
		"eventsReceived":  received,
		"eventsProcessed": processed,
		"eventsFailed":    failed,
		"results":         results,
	}
	envelope.WriteSuccess(w, "WEBHOOK_PROCESSED", "webhook events processed", correlationID, metadata)
}

// processEvent handles one embedded event. Unknown event names are
// recorded as failed without aborting the batch.
func (h *MauticWebhookHandler) processEvent(r *http.Request, eventName string, event mauticEvent, correlationID string) eventResult {
	eventType, known := mauticEventTypes[eventName]
	if !known {
		return eventResult{
			Type:   eventName,
			Status: "failed",
			Error:  "unknown event type",
		}
	}

	contact := event.Lead
	if contact == nil {
		contact = event.Contact
	}

	result := eventResult{Type: eventType, Status: "processed"}
	if contact != nil {
		result.ContactID = contact.ID
		result.Email = contact.Email
	}

	// Contact upserts flow downstream when an ingest endpoint is
	// configured; the other event families are informational.
	if h.forwarder != nil && contact != nil && contact.Email != "" &&
		(eventType == "new_contact" || eventType == "updated_contact") {
		lead := normalize.Normalize(contactToRaw(contact))
		lead.Source = "mautic_webhook"
		if _, err := h.forwarder.Forward(r.Context(), lead, correlationID); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
		}
	}

	return result
}

// contactToRaw flattens a Mautic contact into the normalizer's input shape.
func contactToRaw(contact *mauticContact) map[string]interface{} {
	raw := map[string]interface{}{"email": contact.Email}
	for key, value := range contact.Fields {
		if _, exists := raw[key]; !exists {
			raw[key] = value
		}
	}
	return raw
}
