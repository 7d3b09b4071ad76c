package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// AdminClientID is the client ID that logs in with admin rights
const AdminClientID = "admin"

// Handlers contains all HTTP request handlers
type Handlers struct {
	relay   relay.Relay
	jwtAuth *JWTAuth
	logger  *zap.Logger
}

// NewHandlers creates handlers serving r
func NewHandlers(r relay.Relay, jwtAuth *JWTAuth, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		relay:   r,
		jwtAuth: jwtAuth,
		logger:  logger,
	}
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" {
		writeError(w, "clientId is required", http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, req.ClientID == AdminClientID)
	if err != nil {
		writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := h.relay.Health()

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, health, statusCode)
}

// Routes handles GET /api/v1/routes
func (h *Handlers) Routes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.relay.Report(), http.StatusOK)
}

// Command handles POST /api/v1/commands
func (h *Handlers) Command(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := validateJSON(r); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		writeError(w, "command is required", http.StatusBadRequest)
		return
	}

	h.logger.Info("command received", zap.String("client", GetClientID(r)), zap.String("command", req.Command))

	if err := h.relay.HandleCommand(r.Context(), req.Command); err != nil {
		kind := relay.KindOf(err)
		writeJSON(w, ErrorResponse{
			Error:   http.StatusText(commandStatus(kind)),
			Message: err.Error(),
			Kind:    kind.String(),
			Code:    commandStatus(kind),
		}, commandStatus(kind))
		return
	}

	writeJSON(w, CommandResponse{
		Command: req.Command,
		Applied: true,
		Routes:  h.relay.Report(),
	}, http.StatusOK)
}

// commandStatus maps a relay error kind to an HTTP status
func commandStatus(kind relay.Kind) int {
	switch kind {
	case relay.KindConfig, relay.KindResolution:
		return http.StatusBadRequest
	case relay.KindDuplicateListener:
		return http.StatusConflict
	case relay.KindSocket:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// validateJSON validates that the request has JSON content type
func validateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errors.New("Content-Type must be application/json")
	}
	return nil
}
