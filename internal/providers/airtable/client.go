// Package airtable creates records in an Airtable base over the v0 REST
// API with bearer authentication.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	commonhttp "crm-gateway/internal/common/http"
	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/common/utils"
)

const defaultBaseURL = "https://api.airtable.com"

// Config holds the Airtable credentials and target table.
type Config struct {
	APIKey    string
	BaseID    string
	TableName string

	// BaseURL overrides the Airtable host. Used by tests.
	BaseURL string
}

// Client talks to one Airtable table.
type Client struct {
	config Config
	caller *commonhttp.Caller
	logger logging.Logger
}

// Record is Airtable's wire shape for a created record.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime"`
	Fields      map[string]interface{} `json:"fields"`
}

// NewClient builds an Airtable client. httpClient may be nil.
func NewClient(config Config, httpClient *http.Client, retry utils.RetryConfig, logger logging.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{
		config: config,
		caller: commonhttp.NewCaller("airtable", httpClient, retry, logger),
		logger: logger,
	}
}

// CreateRecord writes one record with the given fields and returns the
// created record's id.
func (c *Client) CreateRecord(ctx context.Context, fields map[string]interface{}) (*Record, error) {
	payload, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return nil, errors.Internal("failed to serialize airtable record", err)
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s",
		c.config.BaseURL,
		url.PathEscape(c.config.BaseID),
		url.PathEscape(c.config.TableName),
	)

	resp, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, commonhttp.JSONBody(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(resp.Body, &record); err != nil {
		return nil, errors.Internal("failed to parse airtable response", err)
	}

	c.logger.Info("Created airtable record",
		logging.String("record_id", record.ID),
		logging.String("table", c.config.TableName),
	)

	return &record, nil
}
