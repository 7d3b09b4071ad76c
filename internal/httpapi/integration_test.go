package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rmacdonaldsmith/pshare-go/internal/localbus"
	"github.com/rmacdonaldsmith/pshare-go/internal/relay"
	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
)

// TestCommandReconfiguresEngine drives a real engine through the API:
// login as admin, add an output route by command, then read it back.
func TestCommandReconfiguresEngine(t *testing.T) {
	community, err := localbus.NewCommunity(&localbus.Config{})
	require.NoError(t, err)
	defer community.Close()

	bus, err := community.Connect("pShare")
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	cfg := relay.NewConfig("pShare")
	cfg.Logger = zaptest.NewLogger(t)
	cfg.Registerer = registry
	cfg.Resolver = func(_ context.Context, s string) (endpoint.Endpoint, error) {
		return endpoint.Parse(s)
	}

	engine, err := relay.NewEngine(cfg, bus)
	require.NoError(t, err)
	defer engine.Close()

	server := NewServer(engine, Config{SecretKey: "integration-secret", Gatherer: registry})
	setup := &TestServerSetup{Server: server, Auth: server.jwtAuth, Registry: registry}

	rec := setup.Do(http.MethodPost, "/api/v1/auth/login", "", `{"clientId":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = setup.Do(http.MethodPost, "/api/v1/commands", login.Token,
		`{"command":"cmd=output,src_name=NAV_X,dest_name=REMOTE_X,route=127.0.0.1:9010"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var applied CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	require.Len(t, applied.Routes.Outputs, 1)
	assert.Equal(t, "REMOTE_X", applied.Routes.Outputs[0].DestName)
	assert.True(t, bus.IsRegisteredFor("NAV_X"))

	// a malformed command changes nothing
	rec = setup.Do(http.MethodPost, "/api/v1/commands", login.Token,
		`{"command":"cmd=output,src_name=BAD,route=127.0.0.1:9011&bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = setup.Do(http.MethodGet, "/api/v1/routes", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report RoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Outputs, 1)

	rec = setup.Do(http.MethodGet, "/metrics", "", "")
	assert.Contains(t, rec.Body.String(), "pshare_output_routes 1")
}
