package handlers

import (
	"net/http"

	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/providers/airtable"
)

// AirtableHandler syncs leads into an Airtable table.
type AirtableHandler struct {
	*Base
	client *airtable.Client
}

// NewAirtableHandler wires the Airtable sync endpoint. client may be nil
// when the provider is unconfigured; the demo gate fires before any use.
func NewAirtableHandler(base *Base, client *airtable.Client) *AirtableHandler {
	return &AirtableHandler{Base: base, client: client}
}

func (h *AirtableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := h.CorrelationID(r)

	if !h.RequireMethod(w, r, http.MethodPost, correlationID) {
		return
	}

	var payload LeadPayload
	if !h.DecodeJSON(w, r, &payload, correlationID) {
		return
	}
	if !h.ValidatePayload(w, &payload, correlationID) {
		return
	}
	if h.DemoGate(w, config.ProviderAirtable, correlationID) {
		return
	}

	fields := map[string]interface{}{
		"Email": payload.Email,
	}
	if payload.FirstName != "" {
		fields["First Name"] = payload.FirstName
	}
	if payload.LastName != "" {
		fields["Last Name"] = payload.LastName
	}
	if payload.Phone != "" {
		fields["Phone"] = payload.Phone
	}
	if payload.Source != "" {
		fields["Source"] = payload.Source
	}

	record, err := h.client.CreateRecord(r.Context(), fields)
	if err != nil {
		h.LogOutcome("airtable_sync", correlationID, err)
		envelope.WriteError(w, err, correlationID)
		return
	}

	h.LogOutcome("airtable_sync", correlationID, nil,
		logging.String("record_id", record.ID),
	)
	envelope.WriteSuccess(w, "SYNCED", "lead synced to airtable", correlationID,
		map[string]interface{}{"recordId": record.ID})
}
