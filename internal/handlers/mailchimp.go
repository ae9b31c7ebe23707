package handlers

import (
	"net/http"

	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/providers/mailchimp"
)

// MailchimpHandler subscribes leads to a Mailchimp audience.
type MailchimpHandler struct {
	*Base
	client *mailchimp.Client
}

// NewMailchimpHandler wires the Mailchimp sync endpoint.
func NewMailchimpHandler(base *Base, client *mailchimp.Client) *MailchimpHandler {
	return &MailchimpHandler{Base: base, client: client}
}

func (h *MailchimpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	if h.DemoGate(w, config.ProviderMailchimp, correlationID) {
		return
	}

	member, err := h.client.Subscribe(r.Context(),
		payload.Email, payload.FirstName, payload.LastName, payload.Phone, payload.Tags)
	if err != nil {
		// A repeat subscribe for the same address is a success for callers.
		if mailchimp.IsMemberExists(err) {
			h.LogOutcome("mailchimp_sync", correlationID, nil,
				logging.String("email", payload.Email),
				logging.Bool("already_subscribed", true),
			)
			envelope.WriteSuccess(w, "ALREADY_SUBSCRIBED", "email is already subscribed", correlationID,
				map[string]interface{}{"alreadySubscribed": true})
			return
		}

		h.LogOutcome("mailchimp_sync", correlationID, err)
		envelope.WriteError(w, err, correlationID)
		return
	}

	h.LogOutcome("mailchimp_sync", correlationID, nil,
		logging.String("member_id", member.ID),
	)
	envelope.WriteSuccess(w, "SYNCED", "lead subscribed to mailchimp audience", correlationID,
		map[string]interface{}{"memberId": member.ID, "status": member.Status})
}
