package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotAuthenticated is returned by calls that need a token before Authenticate
var ErrNotAuthenticated = errors.New("client not authenticated - call Authenticate() first")

// Client provides HTTP client for the pShare admin API
type Client struct {
	config     Config
	httpClient *http.Client
	token      string
	baseURL    *url.URL
}

// NewClient creates a new admin API client
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("ClientID is required")
	}

	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		baseURL:    baseURL,
	}, nil
}

// Authenticate logs in and stores the token
func (c *Client) Authenticate(ctx context.Context) error {
	authReq := map[string]string{
		"clientId": c.config.ClientID,
	}

	var authResp AuthResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", authReq, &authResp, false); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.token = authResp.Token
	return nil
}

// GetHealth returns the health status of the relay
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false)

	// an unhealthy relay answers 503 with the status body
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return &resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// GetRoutes returns the relay's routing report
func (c *Client) GetRoutes(ctx context.Context) (*RoutesResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp RoutesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/routes", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to get routes: %w", err)
	}
	return &resp, nil
}

// SendCommand applies a "cmd=output,..." or "cmd=input,..." command (admin only)
func (c *Client) SendCommand(ctx context.Context, command string) (*CommandResponse, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var resp CommandResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/commands", CommandRequest{Command: command}, &resp, true); err != nil {
		return nil, fmt.Errorf("command rejected: %w", err)
	}
	return &resp, nil
}

// AddOutput adds output routes described by fields such as "src_name=X,route=host:port"
func (c *Client) AddOutput(ctx context.Context, fields string) (*CommandResponse, error) {
	return c.SendCommand(ctx, "cmd=output,"+strings.TrimSpace(fields))
}

// AddInput adds listeners described by fields such as "route=multicast_1"
func (c *Client) AddInput(ctx context.Context, fields string) (*CommandResponse, error) {
	return c.SendCommand(ctx, "cmd=input,"+strings.TrimSpace(fields))
}

// doRequest performs an HTTP request with optional authentication. GET
// requests are retried when the server cannot be reached.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any, respBody any, requireAuth bool) error {
	var jsonBody []byte
	if reqBody != nil {
		var err error
		if jsonBody, err = json.Marshal(reqBody); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		var retry bool
		retry, err = c.do(ctx, method, path, jsonBody, respBody, requireAuth)
		if !retry {
			return err
		}
	}
	return err
}

// do performs one request. retry reports a transport failure.
func (c *Client) do(ctx context.Context, method, path string, jsonBody []byte, respBody any, requireAuth bool) (retry bool, err error) {
	fullURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var bodyReader io.Reader
	if jsonBody != nil {
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
		var errResp ErrorResponse
		if json.Unmarshal(bodyBytes, &errResp) == nil && errResp.Message != "" {
			apiErr.Message = errResp.Message
			apiErr.Kind = errResp.Kind
		}
		// health reports its body even when unhealthy
		if respBody != nil && resp.StatusCode == http.StatusServiceUnavailable {
			_ = json.Unmarshal(bodyBytes, respBody)
		}
		return false, apiErr
	}

	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return false, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return false, nil
}

// IsAuthenticated returns whether the client has a valid token
func (c *Client) IsAuthenticated() bool {
	return c.token != ""
}

// GetToken returns the current authentication token
func (c *Client) GetToken() string {
	return c.token
}

// SetToken sets the authentication token (useful for testing or token reuse)
func (c *Client) SetToken(token string) {
	c.token = token
}
