package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/nguyendn/wwwhisper/internal/infra/buildinfo"
)

const csrfHeader = "X-CSRFToken"

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Client is an authenticated admin API client.
type Client struct {
	baseURL string
	client  *http.Client
	csrf    string
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport, e.g. to trust a private CA.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.client.Transport = rt
	}
}

// NewClient creates a client for server. A server without a scheme gets
// https://.
func NewClient(server string, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login signs in and primes the CSRF token for the new session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if err := c.refreshCSRF(ctx); err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/auth/api/login/", body, nil); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	// The token issued before login was bound to the anonymous cookie.
	if err := c.refreshCSRF(ctx); err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	return nil
}

// Logout ends the session. Errors are ignored by most callers.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/auth/api/logout/", nil, nil)
}

func (c *Client) refreshCSRF(ctx context.Context) error {
	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/api/csrftoken/", nil, &resp); err != nil {
		return err
	}
	c.csrf = resp.CSRFToken
	return nil
}

// Do sends a request with an optional JSON body and decodes the JSON
// response into target when target is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && c.csrf != "" {
		req.Header.Set(csrfHeader, c.csrf)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "wwwhisper-admin/"+buildinfo.Get().Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return ParseResponse(resp, target)
}

// ParseResponse decodes a JSON response into target, or the error envelope
// into an *APIError for 4xx and 5xx.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return apiErr
	}

	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
