package relay

import (
	"testing"

	"github.com/rmacdonaldsmith/pshare-go/internal/peerlink"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
)

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid", config: NewConfig("pShare")},
		{name: "empty app name", config: NewConfig(""), wantErr: true},
		{name: "negative tick", config: &Config{AppName: "pShare", Tick: -1}, wantErr: true},
		{name: "negative queue capacity", config: &Config{AppName: "pShare", QueueCapacity: -1}, wantErr: true},
		{name: "invalid transport", config: &Config{AppName: "pShare", Transport: &peerlink.Config{MulticastTTL: 300}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	config := &Config{AppName: "pShare"}
	config.SetDefaults()

	if config.Tick != shareconfig.DefaultAppTick {
		t.Errorf("Expected tick %v, got %v", shareconfig.DefaultAppTick, config.Tick)
	}
	if config.Aliases != endpoint.DefaultAliases() {
		t.Errorf("Expected default aliases, got %+v", config.Aliases)
	}
	if config.Clock == nil || config.Logger == nil || config.Resolver == nil {
		t.Error("Expected clock, logger and resolver to be set")
	}
}
