package handlers

import (
	"net/http"

	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/envelope"
	"crm-gateway/internal/redis"
)

// HealthHandler reports gateway liveness. Redis is the only hard runtime
// dependency; when it is configured but unreachable the gateway is
// systemically unhealthy and reports 503. Provider configuration state is
// informational only and never fails the check.
type HealthHandler struct {
	*Base
	redis *redis.Client
}

// NewHealthHandler wires the health endpoint. redisClient may be nil.
func NewHealthHandler(base *Base, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{Base: base, redis: redisClient}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := h.CorrelationID(r)

	if !h.RequireMethod(w, r, http.MethodGet, correlationID) {
		return
	}

	providers := map[string]interface{}{
		"airtable":   h.Config.IsConfigured(config.ProviderAirtable),
		"mailchimp":  h.Config.IsConfigured(config.ProviderMailchimp),
		"mautic":     h.Config.IsConfigured(config.ProviderMautic),
		"leadIngest": h.Config.IsConfigured(config.ProviderLeadIngest),
	}

	if h.Config.HasRedis() && h.redis != nil {
		if err := h.redis.Health(); err != nil {
			h.Logger.Error("Redis health check failed", err,
				logging.String("correlation_id", correlationID),
			)
			resp := &envelope.Response{
				OK:            false,
				Code:          "UNHEALTHY",
				Message:       "redis is configured but unreachable",
				CorrelationID: correlationID,
				Metadata:      map[string]interface{}{"providers": providers, "redis": "down"},
			}
			envelope.Write(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	envelope.WriteSuccess(w, "HEALTHY", "gateway is healthy", correlationID,
		map[string]interface{}{"providers": providers})
}
