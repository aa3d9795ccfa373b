package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clonex/auth-gateway/instrumentation"
)

// defaultTimeout bounds backend API calls
const defaultTimeout = 10 * time.Second

// maxResponseSize bounds backend response bodies (4 MB)
const maxResponseSize = 4 << 20

// ErrSessionExpired is returned when the backend rejects the session
// token with 401. The caller clears the session cookies in response.
var ErrSessionExpired = errors.New("backend rejected session token")

// APIError is a non-401 error response from the backend
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s returned %d", e.Endpoint, e.StatusCode)
}

// Credentials carries the per-request session identity
type Credentials struct {
	AccessToken string
	UserID      string
}

// Config holds backend client configuration
type Config struct {
	// BaseURL is the backend base URL (e.g. https://api.clonex.example.com)
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to one with a
	// 10 second timeout.
	HTTPClient *http.Client

	Logger          *slog.Logger
	Instrumentation *instrumentation.Instrumentation
}

// Client calls the CloneX backend with session credentials
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	inst       *instrumentation.Instrumentation
}

// New creates a backend client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		inst:       config.Instrumentation,
	}, nil
}

// Timeline fetches the user's home timeline.
// nextToken requests the next page when non-empty.
func (c *Client) Timeline(ctx context.Context, creds Credentials, nextToken string) (json.RawMessage, error) {
	query := url.Values{}
	if nextToken != "" {
		query.Set("next_token", nextToken)
	}
	return c.do(ctx, http.MethodGet, "/api/timeline", query, nil, creds)
}

// Posts fetches a user's posts.
// userID defaults to the session user when empty.
func (c *Client) Posts(ctx context.Context, creds Credentials, userID, nextToken string) (json.RawMessage, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	if nextToken != "" {
		query.Set("next_token", nextToken)
	}
	return c.do(ctx, http.MethodGet, "/api/posts", query, nil, creds)
}

// CreateAnalysis starts a writing-style analysis for the session user
func (c *Client) CreateAnalysis(ctx context.Context, creds Credentials, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/analysis/create", nil, body, creds)
}

// GenerateTweets asks the backend to generate tweets in the user's voice
func (c *Client) GenerateTweets(ctx context.Context, creds Credentials, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/generate", nil, body, creds)
}

// CreateCheckoutSession creates a Stripe checkout session for the user
func (c *Client) CreateCheckoutSession(ctx context.Context, creds Credentials, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/stripe/create-checkout-session", nil, body, creds)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body json.RawMessage, creds Credentials) (json.RawMessage, error) {
	if creds.AccessToken == "" {
		return nil, ErrSessionExpired
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if creds.UserID != "" {
		req.Header.Set("X-Twitter-User-Id", creds.UserID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	durationMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		c.logger.Warn("Backend request failed",
			"endpoint", path,
			"error", err)
		return nil, fmt.Errorf("backend request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.recordCall(ctx, path, resp.StatusCode, durationMs)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response from %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Info("Backend rejected session token",
			"endpoint", path,
			"token_prefix", safeTruncate(creds.AccessToken, 8))
		if c.inst != nil {
			c.inst.Metrics().RecordSessionExpired(ctx, path)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrSessionExpired)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("Backend returned error status",
			"endpoint", path,
			"status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Body: respBody}
	}

	return respBody, nil
}

func (c *Client) recordCall(ctx context.Context, endpoint string, status int, durationMs float64) {
	if c.inst == nil {
		return
	}
	c.inst.Metrics().RecordBackendAPICall(ctx, endpoint, status, durationMs)
}

// safeTruncate safely truncates a string to maxLen characters for logging
func safeTruncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
