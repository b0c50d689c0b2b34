// Package devpi implements the identity contracts against a devpi server:
// tokens are issued by the server's own /+login endpoint, and session
// credentials are validated by replaying them as basic auth. The gate never
// stores credentials; the upstream stays the single authority.
package devpi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/observability/metrics"
)

// Client talks to the devpi upstream
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *logging.Logger
	metrics *metrics.Collector
}

// Config holds upstream client configuration
type Config struct {
	// URL is the devpi server base URL
	URL *url.URL

	// Timeout bounds each upstream call
	Timeout time.Duration
}

// New creates a new upstream client
func New(cfg Config, logger *logging.Logger, collector *metrics.Collector) *Client {
	return &Client{
		base:    cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.WithModule("identity.devpi"),
		metrics: collector,
	}
}

// loginResult mirrors the body of a successful devpi /+login response
type loginResult struct {
	Result struct {
		Password   string `json:"password"`
		Expiration int    `json:"expiration"`
	} `json:"result"`
}

// NewProxyAuth exchanges a username/password pair for a signed proxy token.
// A 401 from the upstream maps to ErrInvalidCredentials; anything else
// unexpected is an error the caller surfaces as a failed login.
func (c *Client) NewProxyAuth(ctx context.Context, username, password string) (*identity.Token, error) {
	body, err := json.Marshal(map[string]string{"user": username, "password": password})
	if err != nil {
		return nil, err
	}

	endpoint := c.base.JoinPath("/+login")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream login request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.Debug("upstream rejected credentials", "user", username)
		return nil, identity.ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("unexpected upstream login status %d", resp.StatusCode)
	}

	var result loginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed upstream login response: %w", err)
	}

	return &identity.Token{
		Secret:            result.Result.Password,
		ExpirationSeconds: result.Result.Expiration,
	}, nil
}

// Validate replays session credentials against the upstream as basic auth.
// The proxy password issued by NewProxyAuth is accepted by devpi in place of
// the real one, so a cheap authenticated GET answers whether the session is
// still live.
func (c *Client) Validate(ctx context.Context, creds identity.Credentials) (bool, error) {
	endpoint := c.base.JoinPath("/+api")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(creds.Username, creds.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordCredentialValidation(false)
		return false, fmt.Errorf("upstream validation request failed: %w", err)
	}
	defer resp.Body.Close()

	valid := resp.StatusCode == http.StatusOK
	c.metrics.RecordCredentialValidation(valid)
	if !valid {
		c.logger.Debug("session credentials rejected by upstream",
			"user", creds.Username, "status", resp.StatusCode)
	}
	return valid, nil
}

var (
	_ identity.Issuer    = (*Client)(nil)
	_ identity.Validator = (*Client)(nil)
)
