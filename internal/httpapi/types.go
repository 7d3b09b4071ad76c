package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CommandRequest carries a "cmd=output,..." or "cmd=input,..." command
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse reports an applied command and the resulting routes
type CommandResponse struct {
	Command string       `json:"command"`
	Applied bool         `json:"applied"`
	Routes  relay.Report `json:"routes"`
}

// HealthResponse is the relay health summary
type HealthResponse = relay.HealthStatus

// RoutesResponse is the relay routing report
type RoutesResponse = relay.Report

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code"`
}
