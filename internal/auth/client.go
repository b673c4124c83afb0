// Package auth implements the client for the external token service.
//
// The service is an opaque collaborator: the client posts a fixed set of
// credential fields and receives a bearer token. No identity handling happens
// in this codebase.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrServiceUnavailable is returned when the token service can't be reached
// or answers with a non-success status. Flows that depend on a token must
// surface this to the caller.
var ErrServiceUnavailable = errors.New("auth service unavailable")

// Credentials are the fields the token endpoint expects.
type Credentials struct {
	Email        string `json:"email" yaml:"email"`
	Name         string `json:"name" yaml:"name"`
	RollNo       string `json:"rollNo" yaml:"roll_no"`
	AccessCode   string `json:"accessCode" yaml:"access_code"`
	ClientID     string `json:"clientID" yaml:"client_id"`
	ClientSecret string `json:"clientSecret" yaml:"client_secret"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// Client fetches and caches bearer tokens from the token endpoint.
type Client struct {
	endpoint string
	creds    Credentials
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClient creates a token client for the given endpoint and credentials.
func NewClient(endpoint string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		creds:    creds,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchToken returns a valid bearer token, requesting a fresh one when the
// cached token is missing or expired.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	const op = "auth.Client.FetchToken"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.expiresAt.IsZero() || c.now().Before(c.expiresAt)) {
		return c.token, nil
	}

	body, err := json.Marshal(c.creds)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal credentials: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s: %w: status %d", op, ErrServiceUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("%s: %w: empty token in response", op, ErrServiceUnavailable)
	}

	c.token = tr.Token
	c.expiresAt = time.Time{}
	if tr.ExpiresIn > 0 {
		c.expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return c.token, nil
}
