// Package mautic upserts contacts into a Mautic instance over its REST
// API. Every call carries a bearer token obtained through the shared
// OAuth2 client-credentials manager; contact sync is an idempotent
// search-then-create-or-edit upsert keyed by email.
package mautic

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
	"crm-gateway/internal/oauth2"
)

// Config holds the Mautic instance location. Credentials live in the
// OAuth2 manager.
type Config struct {
	BaseURL    string
	CampaignID string
}

// Client talks to one Mautic instance.
type Client struct {
	config Config
	tokens *oauth2.Manager
	caller *commonhttp.Caller
	logger logging.Logger
}

// Contact is the subset of Mautic's contact shape the gateway reads.
type Contact struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// ContactFields is the flat field set sent on create and edit.
type ContactFields struct {
	Email     string `json:"email"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// NewClient builds a Mautic client. httpClient may be nil.
func NewClient(config Config, tokens *oauth2.Manager, httpClient *http.Client, retry utils.RetryConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Client{
		config: config,
		tokens: tokens,
		caller: commonhttp.NewCaller("mautic", httpClient, retry, logger),
		logger: logger,
	}
}

// TokenURL returns the token endpoint for a Mautic base URL.
func TokenURL(baseURL string) string {
	return baseURL + "/oauth/v2/token"
}

// UpsertContact finds a contact by email and updates it, or creates a new
// one. Returns the contact id and whether it was newly created.
func (c *Client) UpsertContact(ctx context.Context, fields ContactFields) (int, bool, error) {
	existing, err := c.FindContactByEmail(ctx, fields.Email)
	if err != nil {
		return 0, false, err
	}

	if existing != nil {
		if err := c.editContact(ctx, existing.ID, fields); err != nil {
			return 0, false, err
		}
		return existing.ID, false, nil
	}

	id, err := c.createContact(ctx, fields)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// FindContactByEmail returns the first contact matching the email, or nil.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	endpoint := fmt.Sprintf("%s/api/contacts?search=%s",
		c.config.BaseURL,
		url.QueryEscape("email:"+email),
	)

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Total    json.Number         `json:"total"`
		Contacts map[string]*Contact `json:"contacts"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, errors.Internal("failed to parse mautic search response", err)
	}

	for _, contact := range result.Contacts {
		return contact, nil
	}
	return nil, nil
}

// createContact creates a new contact and returns its id.
func (c *Client) createContact(ctx context.Context, fields ContactFields) (int, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return 0, errors.Internal("failed to serialize mautic contact", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.config.BaseURL+"/api/contacts/new", payload)
	if err != nil {
		return 0, err
	}

	var result struct {
		Contact Contact `json:"contact"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return 0, errors.Internal("failed to parse mautic create response", err)
	}

	c.logger.Info("Created mautic contact", logging.Int("contact_id", result.Contact.ID))
	return result.Contact.ID, nil
}

// editContact patches an existing contact's fields.
func (c *Client) editContact(ctx context.Context, id int, fields ContactFields) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return errors.Internal("failed to serialize mautic contact", err)
	}

	endpoint := fmt.Sprintf("%s/api/contacts/%d/edit", c.config.BaseURL, id)
	if _, err := c.do(ctx, http.MethodPatch, endpoint, payload); err != nil {
		return err
	}

	c.logger.Info("Updated mautic contact", logging.Int("contact_id", id))
	return nil
}

// AddToCampaign adds a contact to the configured campaign. No-op when no
// campaign is configured.
func (c *Client) AddToCampaign(ctx context.Context, contactID int) error {
	if c.config.CampaignID == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/campaigns/%s/contact/%d/add",
		c.config.BaseURL, url.PathEscape(c.config.CampaignID), contactID)
	_, err := c.do(ctx, http.MethodPost, endpoint, nil)
	return err
}

// RecordActivity attaches an audit note to a contact. Failures are logged
// and swallowed; a missing note never fails the sync.
func (c *Client) RecordActivity(ctx context.Context, contactID int, text string) {
	payload, err := json.Marshal(map[string]interface{}{
		"lead": contactID,
		"type": "general",
		"text": text,
	})
	if err != nil {
		return
	}

	if _, err := c.do(ctx, http.MethodPost, c.config.BaseURL+"/api/notes/new", payload); err != nil {
		c.logger.Warn("Failed to record mautic activity note",
			logging.Int("contact_id", contactID),
			logging.Err(err),
		)
	}
}

// do executes one authenticated request through the shared caller.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (*commonhttp.Response, error) {
	return c.caller.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		var req *http.Request
		var err error
		if payload != nil {
			req, err = http.NewRequestWithContext(ctx, method, endpoint, commonhttp.JSONBody(payload))
		} else {
			req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
		}
		if err != nil {
			return nil, err
		}

		auth, err := c.tokens.AuthorizationHeader(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", auth)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}
