package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"metacache/pkg/config"
	errs "metacache/pkg/errors"
	"metacache/pkg/logger"
	"metacache/pkg/ratelimit"
	"metacache/pkg/retry"
)

// Client is the rate-limited Graph API gateway. It makes single calls,
// classifies remote errors and retries transient ones with exponential
// backoff; it knows nothing about business entities.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	version     string
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	limiters    *ratelimit.Registry
	logger      logger.Logger
}

// NewClient creates a new Graph API client from configuration.
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RateLimit.RequestTimeout,
		},
		baseURL:     BaseURL,
		version:     cfg.Meta.APIVersion,
		maxRetries:  cfg.RateLimit.MaxRetries,
		backoffBase: cfg.RateLimit.InitialBackoff,
		backoffMax:  cfg.RateLimit.MaxBackoff,
		limiters:    ratelimit.NewRegistry(cfg.RateLimit.RequestsPerMinute, time.Minute),
		logger:      log,
	}
}

// SetBaseURL overrides the API host; used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// Call performs a single GET against a versioned endpoint with the
// given credential. Transport-level 429/5xx responses and remote error
// payloads whose code is in the rate-limit set share one retry budget;
// any other remote error propagates immediately, classified with its
// code and subcode.
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values, token string) (json.RawMessage, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	merged.Set("access_token", token)

	fullURL := c.url(endpoint, merged)

	c.logger.DebugWithFields("graph call", map[string]interface{}{
		"endpoint": endpoint,
	})

	return c.fetch(ctx, fullURL, token)
}

// GetJSON performs a Call and decodes the response into target.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, token string, target interface{}) error {
	raw, err := c.Call(ctx, endpoint, params, token)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, target); err != nil {
		c.logger.ErrorWithFields("failed to parse graph response", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse response: %v", err),
		}
	}

	return nil
}

// RequestURL fetches a full URL, used for following paging.next links.
// The credential is only used to pick the right rate-limit bucket; the
// URL already carries its own access token.
func (c *Client) RequestURL(ctx context.Context, rawURL, credential string) (json.RawMessage, error) {
	return c.fetch(ctx, rawURL, credential)
}

// GetPageInfo fetches basic Page information.
func (c *Client) GetPageInfo(ctx context.Context, pageID, token string) (*Page, error) {
	params := url.Values{}
	params.Set("fields", PageFields)

	var page Page
	if err := c.GetJSON(ctx, pageID, params, token, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetIGAccount fetches basic Instagram Business Account information.
func (c *Client) GetIGAccount(ctx context.Context, accountID, token string) (*IGAccount, error) {
	params := url.Values{}
	params.Set("fields", IGAccountFields)

	var account IGAccount
	if err := c.GetJSON(ctx, accountID, params, token, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetLinkedIGAccount fetches the Instagram Business Account linked to a
// Page, if any. A Page without a linked account returns (nil, nil).
func (c *Client) GetLinkedIGAccount(ctx context.Context, pageID, token string) (*IGAccount, error) {
	params := url.Values{}
	params.Set("fields", "instagram_business_account{"+IGAccountFields+"}")

	var wrapper struct {
		InstagramBusinessAccount *IGAccount `json:"instagram_business_account"`
	}
	if err := c.GetJSON(ctx, pageID, params, token, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.InstagramBusinessAccount, nil
}

func (c *Client) url(endpoint string, params url.Values) string {
	if c.baseURL == BaseURL {
		return buildURL(c.version, endpoint, params)
	}
	// Test override keeps the same path shape.
	u := buildURL(c.version, endpoint, params)
	return c.baseURL + u[len(BaseURL):]
}

// fetch runs one logical call with the shared retry budget.
func (c *Client) fetch(ctx context.Context, fullURL, credential string) (json.RawMessage, error) {
	retryCfg := &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:  c.backoffBase,
			MaxDelay:   c.backoffMax,
			Multiplier: 2.0,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  c.logger,
	}

	return retry.DoWithResult(func() (json.RawMessage, error) {
		return c.doOnce(ctx, fullURL, credential)
	}, retryCfg)
}

// doOnce performs one physical HTTP round trip.
func (c *Client) doOnce(ctx context.Context, fullURL, credential string) (json.RawMessage, error) {
	c.limiters.For(credential).Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	return nil, classifyResponse(resp.StatusCode, body)
}

// classifyResponse turns a non-200 response into a typed error carrying
// the remote code and subcode.
func classifyResponse(status int, body []byte) *errs.Error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)

	message := env.Error.Message
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}

	return &errs.Error{
		Type:    errs.Classify(status, env.Error.Code, env.Error.ErrorSubcode),
		Message: message,
		Code:    env.Error.Code,
		Subcode: env.Error.ErrorSubcode,
	}
}
