package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// fakeRelay records commands and serves canned reports
type fakeRelay struct {
	mu         sync.Mutex
	commands   []string
	commandErr error
	health     relay.HealthStatus
	report     relay.Report
}

func (f *fakeRelay) Close() error { return nil }

func (f *fakeRelay) AddOutputRoute(context.Context, relay.OutputRoute) error { return nil }
func (f *fakeRelay) AddInputRoute(context.Context, relay.InputRoute) error   { return nil }
func (f *fakeRelay) OnLocalPublish(*message.Message)                         {}
func (f *fakeRelay) DrainInbound()                                           {}
func (f *fakeRelay) PublishStatusSummary()                                   {}
func (f *fakeRelay) DoRegistrations() error                                  { return nil }
func (f *fakeRelay) Run(ctx context.Context) error                           { <-ctx.Done(); return nil }

func (f *fakeRelay) HandleCommand(_ context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commandErr != nil {
		return f.commandErr
	}
	f.commands = append(f.commands, command)
	return nil
}

func (f *fakeRelay) Report() relay.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report
}

func (f *fakeRelay) Health() relay.HealthStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

var _ relay.Relay = (*fakeRelay)(nil)

// TestServerSetup holds common test dependencies
type TestServerSetup struct {
	Relay    *fakeRelay
	Server   *Server
	Auth     *JWTAuth
	Registry *prometheus.Registry
}

// NewTestServerSetup creates a server over a fake relay
func NewTestServerSetup(t *testing.T, noAuth bool) *TestServerSetup {
	t.Helper()

	fake := &fakeRelay{health: relay.HealthStatus{Healthy: true, Running: true}}
	registry := prometheus.NewRegistry()

	server := NewServer(fake, Config{
		Addr:      "127.0.0.1:0",
		SecretKey: "test-secret-key",
		NoAuth:    noAuth,
		Gatherer:  registry,
	})
	if server == nil {
		t.Fatal("Expected server to be created, got nil")
	}

	return &TestServerSetup{
		Relay:    fake,
		Server:   server,
		Auth:     server.jwtAuth,
		Registry: registry,
	}
}

// GenerateTestToken creates a JWT token for testing
func (setup *TestServerSetup) GenerateTestToken(t *testing.T, clientID string, isAdmin bool) string {
	t.Helper()

	token, _, err := setup.Auth.GenerateToken(clientID, isAdmin)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}
	return token
}

// Do sends a request through the server's handler
func (setup *TestServerSetup) Do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	setup.Server.Handler().ServeHTTP(rec, req)
	return rec
}
