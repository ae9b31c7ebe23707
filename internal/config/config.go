// Package config provides configuration management for the CRM integration
// gateway. It loads settings from environment variables with sensible
// defaults and exposes the per-provider "configured" gate that decides
// whether a handler performs real upstream calls or returns a demo-mode
// response.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - DEBUG: Force debug logging when "true"
//   - TLS_CERT_FILE, TLS_KEY_FILE: Enable HTTPS when both are set
//
// Provider Credentials (presence, not values, gates behavior):
//   - AIRTABLE_API_KEY, AIRTABLE_BASE_ID, AIRTABLE_TABLE_NAME
//   - MAILCHIMP_API_KEY, MAILCHIMP_LIST_ID, MAILCHIMP_SERVER_PREFIX
//   - MAUTIC_BASE_URL, MAUTIC_CLIENT_ID, MAUTIC_CLIENT_SECRET
//   - MAUTIC_CAMPAIGN_ID: Optional campaign for synced contacts
//   - LEAD_INGEST_URL: Downstream lead-ingestion endpoint
//
// Webhook Authentication:
//   - WEBHOOK_SECRET: Shared secret for query-string webhook auth
//   - WEBHOOK_HMAC_SECRET: HMAC-SHA256 key for signature verification
//
// Redis (optional, enables shared token cache and rate counters):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable per-source rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Requests per window (default: 100)
//   - RATE_LIMIT_WINDOW: Window duration (default: 60s)
//
// Retry Behavior:
//   - RETRY_MAX_ATTEMPTS: Upstream call attempts (default: 3)
//   - RETRY_BASE_DELAY: Initial backoff delay (default: 250ms)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider identifies a third-party integration target.
type Provider string

const (
	ProviderAirtable   Provider = "airtable"
	ProviderMailchimp  Provider = "mailchimp"
	ProviderMautic     Provider = "mautic"
	ProviderLeadIngest Provider = "lead_ingest"
)

// Config holds all configuration values for the gateway. String fields map
// directly to environment variables; call Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	Debug    bool

	// TLS certificate paths; both must be set to enable HTTPS
	TLSCert string
	TLSKey  string

	// Airtable (spreadsheet-style records API)
	AirtableAPIKey    string
	AirtableBaseID    string
	AirtableTableName string

	// Mailchimp (email-audience API)
	MailchimpAPIKey       string
	MailchimpListID       string
	MailchimpServerPrefix string

	// Mautic (marketing automation, OAuth2 client credentials)
	MauticBaseURL      string
	MauticClientID     string
	MauticClientSecret string
	MauticCampaignID   string

	// Downstream lead-ingestion endpoint. Explicitly injected rather than
	// reconstructed from inbound request headers.
	LeadIngestURL string

	// Webhook authentication
	WebhookSecret     string
	WebhookHMACSecret string

	// Redis configuration for shared state across instances
	RedisAddress  string
	RedisPassword string
	RedisDB       string

	// Rate limiting configuration
	RateLimitEnabled bool
	RateLimitDefault string
	RateLimitWindow  string

	// Retry configuration for upstream calls
	RetryMaxAttempts string
	RetryBaseDelay   string
}

// Load creates a new Config with values from environment variables.
// It does not validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Debug:    getBoolEnv("DEBUG", false),

		TLSCert: getEnv("TLS_CERT_FILE", ""),
		TLSKey:  getEnv("TLS_KEY_FILE", ""),

		AirtableAPIKey:    getEnv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:    getEnv("AIRTABLE_BASE_ID", ""),
		AirtableTableName: getEnv("AIRTABLE_TABLE_NAME", ""),

		MailchimpAPIKey:       getEnv("MAILCHIMP_API_KEY", ""),
		MailchimpListID:       getEnv("MAILCHIMP_LIST_ID", ""),
		MailchimpServerPrefix: getEnv("MAILCHIMP_SERVER_PREFIX", ""),

		MauticBaseURL:      getEnv("MAUTIC_BASE_URL", ""),
		MauticClientID:     getEnv("MAUTIC_CLIENT_ID", ""),
		MauticClientSecret: getEnv("MAUTIC_CLIENT_SECRET", ""),
		MauticCampaignID:   getEnv("MAUTIC_CAMPAIGN_ID", ""),

		LeadIngestURL: getEnv("LEAD_INGEST_URL", ""),

		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		WebhookHMACSecret: getEnv("WEBHOOK_HMAC_SECRET", ""),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "100"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),

		RetryMaxAttempts: getEnv("RETRY_MAX_ATTEMPTS", "3"),
		RetryBaseDelay:   getEnv("RETRY_BASE_DELAY", "250ms"),
	}
}

// providerRequirements maps each provider to the environment variables that
// must all be present before real upstream calls are attempted.
var providerRequirements = map[Provider][]requirement{
	ProviderAirtable: {
		{"AIRTABLE_API_KEY", func(c *Config) string { return c.AirtableAPIKey }},
		{"AIRTABLE_BASE_ID", func(c *Config) string { return c.AirtableBaseID }},
		{"AIRTABLE_TABLE_NAME", func(c *Config) string { return c.AirtableTableName }},
	},
	ProviderMailchimp: {
		{"MAILCHIMP_API_KEY", func(c *Config) string { return c.MailchimpAPIKey }},
		{"MAILCHIMP_LIST_ID", func(c *Config) string { return c.MailchimpListID }},
		{"MAILCHIMP_SERVER_PREFIX", func(c *Config) string { return c.MailchimpServerPrefix }},
	},
	ProviderMautic: {
		{"MAUTIC_BASE_URL", func(c *Config) string { return c.MauticBaseURL }},
		{"MAUTIC_CLIENT_ID", func(c *Config) string { return c.MauticClientID }},
		{"MAUTIC_CLIENT_SECRET", func(c *Config) string { return c.MauticClientSecret }},
	},
	ProviderLeadIngest: {
		{"LEAD_INGEST_URL", func(c *Config) string { return c.LeadIngestURL }},
	},
}

type requirement struct {
	name  string
	value func(*Config) string
}

// IsConfigured reports whether every required credential for the provider
// is present. When false the handler must skip all network calls and
// return a demo-mode response.
func (c *Config) IsConfigured(p Provider) bool {
	return len(c.MissingKeys(p)) == 0
}

// MissingKeys returns the names of the required environment variables that
// are absent for the provider, in declaration order. Used to build the
// demo-mode response so callers can see exactly what is unconfigured.
func (c *Config) MissingKeys(p Provider) []string {
	var missing []string
	for _, req := range providerRequirements[p] {
		if req.value(c) == "" {
			missing = append(missing, req.name)
		}
	}
	return missing
}

// HasRedis reports whether a Redis address is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddress != ""
}

// RateLimitRequests returns the parsed per-window request limit.
func (c *Config) RateLimitRequests() int {
	n, err := strconv.Atoi(c.RateLimitDefault)
	if err != nil || n < 1 {
		return 100
	}
	return n
}

// RateLimitDuration returns the parsed rate-limit window.
func (c *Config) RateLimitDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimitWindow)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// RetryAttempts returns the parsed retry attempt count.
func (c *Config) RetryAttempts() int {
	n, err := strconv.Atoi(c.RetryMaxAttempts)
	if err != nil || n < 1 {
		return 3
	}
	return n
}

// RetryDelay returns the parsed base backoff delay.
func (c *Config) RetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryBaseDelay)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// getEnv retrieves an environment variable or a default when unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable or a default when
// unset or unparseable.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks that all set values are well formed. Missing provider
// credentials are not errors; they switch the provider into demo mode.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.RateLimitEnabled {
		if limit, err := strconv.Atoi(c.RateLimitDefault); err != nil || limit < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive number")
		}
		if _, err := time.ParseDuration(c.RateLimitWindow); err != nil {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration (e.g., '60s', '1m')")
		}
	}

	if n, err := strconv.Atoi(c.RetryMaxAttempts); err != nil || n < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be a positive number")
	}
	if _, err := time.ParseDuration(c.RetryBaseDelay); err != nil {
		return fmt.Errorf("RETRY_BASE_DELAY must be a valid duration (e.g., '250ms')")
	}

	if c.MauticBaseURL != "" {
		if len(c.MauticBaseURL) < 8 || (c.MauticBaseURL[:7] != "http://" && c.MauticBaseURL[:8] != "https://") {
			return fmt.Errorf("MAUTIC_BASE_URL must be an absolute http(s) URL")
		}
	}

	return nil
}
