// Package http wraps the standard HTTP client with the plumbing every
// upstream CRM call shares: pooled transports, retry with exponential
// backoff, a per-provider circuit breaker, and classification of provider
// status codes into the gateway's error taxonomy.
package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"crm-gateway/internal/circuitbreaker"
	"crm-gateway/internal/common/errors"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/common/utils"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	Transport           http.RoundTripper
}

// DefaultClientConfig returns default HTTP client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithTransport sets a custom transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient creates a new HTTP client with the given options
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// Response is the outcome of a successful upstream call. Body is fully
// read and the connection released before Response is returned.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Caller executes upstream requests for one provider, applying retry and
// circuit breaking uniformly so the provider clients only build requests
// and parse bodies.
type Caller struct {
	provider   string
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	retry      utils.RetryConfig
	logger     logging.Logger
}

// NewCaller builds a Caller for one named provider. httpClient may be nil.
func NewCaller(provider string, httpClient *http.Client, retry utils.RetryConfig, logger logging.Logger) *Caller {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Caller{
		provider:   provider,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker(provider, circuitbreaker.HTTPConfig, logger),
		retry:      retry,
		logger:     logger,
	}
}

// Do sends the request, retrying transport errors, 5xx responses, and
// rate limits with exponential backoff. Authentication failures and
// client-side rejections are returned immediately as classified errors.
// build is called per attempt so the request body can be re-read.
func (c *Caller) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	var resp *Response

	retry := c.retry
	retry.Logger = c.logger
	retry.RetryableErrors = isRetryable

	err := utils.RetryWithBackoff(ctx, retry, func(attempt int) error {
		return c.breaker.Execute(ctx, func() error {
			req, err := build(ctx)
			if err != nil {
				return errors.Internal("failed to build upstream request", err)
			}

			r, err := c.attempt(req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// attempt performs one request and classifies the result.
func (c *Caller) attempt(req *http.Request) (*Response, error) {
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Internal(c.provider+" request failed", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Internal("failed to read "+c.provider+" response", err)
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       body,
		}, nil
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, errors.AuthenticationFailed(c.provider)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.RateLimited(c.provider, httpResp.Header.Get("Retry-After"))
	default:
		return nil, errors.APIError(c.provider, httpResp.StatusCode, string(body))
	}
}

// isRetryable allows another attempt for transport failures, upstream 5xx
// responses, and rate limits, which often clear within the backoff delay.
// A 429 that survives every attempt is surfaced with its Retry-After
// intact. Deliberate provider rejections fail on the first attempt.
func isRetryable(err error) bool {
	appErr := errors.AsAppError(err)
	if appErr == nil {
		return false
	}
	switch appErr.Code {
	case errors.CodeAuthenticationFailed,
		errors.CodeInvalidJSON, errors.CodeValidation, errors.CodeUnauthorized:
		return false
	case errors.CodeAPIError:
		if status, ok := appErr.Details["providerStatus"].(int); ok {
			return status >= 500
		}
		return true
	default:
		return true
	}
}

// JSONBody wraps a marshaled payload so request builders can hand the same
// bytes to every retry attempt.
func JSONBody(data []byte) io.Reader {
	return bytes.NewReader(data)
}
