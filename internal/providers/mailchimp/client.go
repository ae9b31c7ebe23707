// Package mailchimp subscribes contacts to a Mailchimp audience over the
// v3.0 REST API. Authentication is HTTP basic with the API key as the
// password; the host is derived from the key's server prefix.
package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	commonhttp "crm-gateway/internal/common/http"
	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/common/utils"
)

// Config holds the Mailchimp credentials and target audience.
type Config struct {
	APIKey       string
	ListID       string
	ServerPrefix string

	// BaseURL overrides the derived Mailchimp host. Used by tests.
	BaseURL string
}

// Client talks to one Mailchimp audience.
type Client struct {
	config Config
	caller *commonhttp.Caller
	logger logging.Logger
}

// Member is Mailchimp's wire shape for a list member.
type Member struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
}

// memberRequest is the subscribe payload.
type memberRequest struct {
	EmailAddress string            `json:"email_address"`
	Status       string            `json:"status"`
	MergeFields  map[string]string `json:"merge_fields,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// NewClient builds a Mailchimp client. httpClient may be nil.
func NewClient(config Config, httpClient *http.Client, retry utils.RetryConfig, logger logging.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = fmt.Sprintf("https://%s.api.mailchimp.com", config.ServerPrefix)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{
		config: config,
		caller: commonhttp.NewCaller("mailchimp", httpClient, retry, logger),
		logger: logger,
	}
}

// Subscribe adds an email address to the audience as a subscribed member.
// firstName, lastName, and phone populate merge fields when present.
func (c *Client) Subscribe(ctx context.Context, email, firstName, lastName, phone string, tags []string) (*Member, error) {
	merge := make(map[string]string)
	if firstName != "" {
		merge["FNAME"] = firstName
	}
	if lastName != "" {
		merge["LNAME"] = lastName
	}
	if phone != "" {
		merge["PHONE"] = phone
	}

	payload, err := json.Marshal(memberRequest{
		EmailAddress: email,
		Status:       "subscribed",
		MergeFields:  merge,
		Tags:         tags,
	})
	if err != nil {
		return nil, errors.Internal("failed to serialize mailchimp member", err)
	}

	endpoint := fmt.Sprintf("%s/3.0/lists/%s/members", c.config.BaseURL, c.config.ListID)

	resp, err := c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, commonhttp.JSONBody(payload))
		if err != nil {
			return nil, err
		}
		// Mailchimp ignores the username; only the key matters.
		req.SetBasicAuth("anystring", c.config.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var member Member
	if err := json.Unmarshal(resp.Body, &member); err != nil {
		return nil, errors.Internal("failed to parse mailchimp response", err)
	}

	c.logger.Info("Subscribed mailchimp member",
		logging.String("member_id", member.ID),
		logging.String("list_id", c.config.ListID),
	)

	return &member, nil
}

// IsMemberExists reports whether an error is Mailchimp's "Member Exists"
// rejection, which sync treats as an idempotent success.
func IsMemberExists(err error) bool {
	appErr := errors.AsAppError(err)
	if appErr == nil || appErr.Code != errors.CodeAPIError {
		return false
	}
	details, _ := appErr.Details["providerDetails"].(string)
	return strings.Contains(details, "Member Exists")
}
