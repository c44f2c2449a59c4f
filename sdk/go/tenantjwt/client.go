// Package tenantjwt is a Go client for the tenantjwt token service.
// Package tenantjwt 是 tenantjwt 令牌服务的 Go 客户端。
package tenantjwt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
)

// Token is an issued access/refresh pair.
type Token struct {
	AccessToken    string                 `json:"accessToken"`
	RefreshToken   string                 `json:"refreshToken"`
	TokenType      string                 `json:"tokenType"`
	ExpiresIn      int64                  `json:"expiresInSeconds"`
	JWTID          string                 `json:"jwtId"`
	AdditionalInfo map[string]interface{} `json:"additionalInfo,omitempty"`

	// Expiry is computed locally from ExpiresIn when the token is received.
	Expiry time.Time `json:"-"`
}

// Expired reports whether the access token expires within skew of now.
func (t *Token) Expired(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(t.Expiry)
}

// UnverifiedClaims decodes the access token payload without checking the
// signature. Encrypted tokens cannot be decoded client side.
func (t *Token) UnverifiedClaims() (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return claims, nil
}

// APIError is a non-2xx answer of the service.
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Kind        string `json:"kind"`
	Retryable   bool   `json:"retryable"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tenantjwt: %d %s: %s", e.Status, e.Code, e.Description)
}

// Client calls the token endpoints on behalf of one tenant.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the retrying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for clientID. Temporarily unavailable and rate
// limited answers are retried up to retryMax times.
func NewClient(baseURL, clientID string, retryMax int, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = 10 * time.Second

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		httpClient: rc.StandardClient(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue exchanges user credentials for a token pair.
func (c *Client) Issue(ctx context.Context, username, password string) (*Token, error) {
	var tok Token
	err := c.post(ctx, "/api/v1/token", map[string]string{
		"clientId": c.clientID,
		"username": username,
		"password": password,
	}, &tok)
	if err != nil {
		return nil, err
	}
	tok.Expiry = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return &tok, nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	var tok Token
	err := c.post(ctx, "/api/v1/token/refresh", map[string]string{
		"clientId":     c.clientID,
		"refreshToken": refreshToken,
	}, &tok)
	if err != nil {
		return nil, err
	}
	tok.Expiry = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return &tok, nil
}

// Verify asks the service to validate an access token and returns its claims.
func (c *Client) Verify(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var resp struct {
		Valid  bool                   `json:"valid"`
		Claims map[string]interface{} `json:"claims"`
	}
	if err := c.post(ctx, "/api/v1/token/verify", map[string]string{
		"clientId": c.clientID,
		"token":    accessToken,
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Claims, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	return json.Unmarshal(data, out)
}
