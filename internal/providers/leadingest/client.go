// Package leadingest forwards canonical leads to the downstream ingestion
// endpoint. The destination is an explicitly injected URL, never derived
// from inbound request headers.
package leadingest

import (
	"context"
	"encoding/json"
	"net/http"

	commonhttp "crm-gateway/internal/common/http"
	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/common/utils"
	"crm-gateway/internal/normalize"
)

// Client posts canonical leads to one ingestion endpoint.
type Client struct {
	ingestURL string
	caller    *commonhttp.Caller
	logger    logging.Logger
}

// NewClient builds a lead forwarder. httpClient may be nil.
func NewClient(ingestURL string, httpClient *http.Client, retry utils.RetryConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{
		ingestURL: ingestURL,
		caller:    commonhttp.NewCaller("lead_ingest", httpClient, retry, logger),
		logger:    logger,
	}
}

// Forward posts the lead downstream and returns the decoded response body
// when the endpoint replies with JSON.
func (c *Client) Forward(ctx context.Context, lead *normalize.CanonicalLead, correlationID string) (map[string]interface{}, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, errors.Internal("failed to serialize lead", err)
	}

	resp, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ingestURL, commonhttp.JSONBody(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if correlationID != "" {
			req.Header.Set("X-Correlation-ID", correlationID)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if len(resp.Body) > 0 {
		// Non-JSON bodies are tolerated; the status already signaled success.
		_ = json.Unmarshal(resp.Body, &result)
	}

	c.logger.Info("Forwarded lead downstream",
		logging.String("email", lead.Email),
		logging.Int("status", resp.StatusCode),
	)

	return result, nil
}
