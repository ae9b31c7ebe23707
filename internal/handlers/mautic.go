package handlers

import (
	"fmt"
	"net/http"

	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/providers/mautic"
)

// MauticHandler upserts leads into Mautic and optionally attaches them to
// a campaign.
type MauticHandler struct {
	*Base
	client *mautic.Client
}

// NewMauticHandler wires the Mautic sync endpoint.
func NewMauticHandler(base *Base, client *mautic.Client) *MauticHandler {
	return &MauticHandler{Base: base, client: client}
}

func (h *MauticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	if h.DemoGate(w, config.ProviderMautic, correlationID) {
		return
	}

	contactID, created, err := h.client.UpsertContact(r.Context(), mautic.ContactFields{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
	})
	if err != nil {
		h.LogOutcome("mautic_sync", correlationID, err)
		envelope.WriteError(w, err, correlationID)
		return
	}

	campaignAdded := false
	if err := h.client.AddToCampaign(r.Context(), contactID); err != nil {
		// Campaign membership is best effort; the contact upsert already
		// succeeded and must be reported as such.
		h.Logger.Warn("Failed to add mautic contact to campaign",
			logging.Int("contact_id", contactID),
			logging.String("correlation_id", correlationID),
			logging.Err(err),
		)
	} else if h.Config.MauticCampaignID != "" {
		campaignAdded = true
	}

	source := payload.Source
	if source == "" {
		source = "gateway"
	}
	h.client.RecordActivity(r.Context(), contactID,
		fmt.Sprintf("Contact synced from %s", source))

	h.LogOutcome("mautic_sync", correlationID, nil,
		logging.Int("contact_id", contactID),
		logging.Bool("created", created),
	)
	envelope.WriteSuccess(w, "SYNCED", "lead synced to mautic", correlationID,
		map[string]interface{}{
			"contactId":     contactID,
			"created":       created,
			"campaignAdded": campaignAdded,
		})
}
