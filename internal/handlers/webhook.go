package handlers

import (
	"crypto/hmac"
	"net/http"

	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/normalize"
	"crm-gateway/internal/providers/leadingest"
	"crm-gateway/internal/signature"
)

// LeadWebhookHandler receives generic inbound lead webhooks from form
// builders and landing pages, normalizes the arbitrary payload into a
// canonical lead, and forwards it to the configured ingestion endpoint.
type LeadWebhookHandler struct {
	*Base
	forwarder *leadingest.Client
}

// NewLeadWebhookHandler wires the generic lead webhook. forwarder may be
// nil when no ingest URL is configured; the demo gate fires before use.
func NewLeadWebhookHandler(base *Base, forwarder *leadingest.Client) *LeadWebhookHandler {
	return &LeadWebhookHandler{Base: base, forwarder: forwarder}
}

func (h *LeadWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := h.CorrelationID(r)

	if !h.RequireMethod(w, r, http.MethodPost, correlationID) {
		return
	}

	body, err := signature.PreserveRequestBody(r)
	if err != nil {
		envelope.WriteError(w, errors.Internal("failed to read request body", err), correlationID)
		return
	}

	if !h.authenticate(w, r, body, correlationID) {
		return
	}

	var raw map[string]interface{}
	if !h.DecodeRawJSON(w, body, &raw, correlationID) {
		return
	}

	lead := normalize.Normalize(raw)
	if lead.Email == "" && lead.Phone == "" {
		envelope.WriteError(w, errors.Validation("lead has no contact information",
			map[string]interface{}{"email": "email or phone is required"}), correlationID)
		return
	}

	if h.DemoGate(w, config.ProviderLeadIngest, correlationID) {
		return
	}

	result, err := h.forwarder.Forward(r.Context(), lead, correlationID)
	if err != nil {
		h.LogOutcome("lead_webhook", correlationID, err)
		envelope.WriteError(w, err, correlationID)
		return
	}

	h.LogOutcome("lead_webhook", correlationID, nil,
		logging.String("email", lead.Email),
		logging.String("source", lead.Source),
	)

	metadata := map[string]interface{}{"lead": lead}
	if result != nil {
		metadata["ingestResult"] = result
	}
	envelope.WriteSuccess(w, "LEAD_ACCEPTED", "lead accepted and forwarded", correlationID, metadata)
}

// authenticate enforces whichever webhook credentials are configured: the
// query-string shared secret, the HMAC signature, or both. With neither
// configured the check is skipped entirely.
func (h *LeadWebhookHandler) authenticate(w http.ResponseWriter, r *http.Request, body []byte, correlationID string) bool {
	if h.Config.WebhookSecret != "" {
		supplied := r.URL.Query().Get("secret")
		if !hmac.Equal([]byte(supplied), []byte(h.Config.WebhookSecret)) {
			h.LogOutcome("lead_webhook", correlationID, errors.Unauthorized("invalid webhook secret"))
			envelope.WriteError(w, errors.Unauthorized("invalid webhook secret"), correlationID)
			return false
		}
	}

	if h.Config.WebhookHMACSecret != "" {
		if !signature.Verify(body, signature.FromRequest(r), h.Config.WebhookHMACSecret) {
			h.LogOutcome("lead_webhook", correlationID, errors.InvalidSignature())
			envelope.WriteError(w, errors.InvalidSignature(), correlationID)
			return false
		}
	}

	return true
}
