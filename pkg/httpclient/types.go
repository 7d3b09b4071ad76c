package httpclient

import (
	"fmt"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the pShare admin API (e.g., "http://localhost:8080")
	ServerURL string

	// ClientID is the identifier for this client; "admin" may issue commands
	ClientID string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for GET requests that fail before reaching the server
	MaxRetries int
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CommandRequest carries a relay command
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse reports an applied command
type CommandResponse struct {
	Command string       `json:"command"`
	Applied bool         `json:"applied"`
	Routes  relay.Report `json:"routes"`
}

// HealthResponse is the relay health summary
type HealthResponse = relay.HealthStatus

// RoutesResponse is the relay routing report
type RoutesResponse = relay.Report

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code"`
}

// APIError is returned for responses with a 4xx or 5xx status
type APIError struct {
	StatusCode int
	Message    string
	// Kind is the relay error kind for rejected commands, if any
	Kind string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}
