package shareconfig

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
)

const (
	// DefaultAppName is the process name used for the bus client and the
	// mission file block
	DefaultAppName = "pShare"

	// DefaultAppTick is the period of the relay's housekeeping loop (40Hz)
	DefaultAppTick = 25 * time.Millisecond
)

var (
	// ErrEmptyAppName is returned when no application name is configured
	ErrEmptyAppName = errors.New("app name cannot be empty")
	// ErrInvalidBasePort is returned when the multicast base port is not a uint16
	ErrInvalidBasePort = errors.New("multicast_base_port must be an unsigned 16 bit number")
)

// LogSettings configures the process logger
type LogSettings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Settings is the complete configuration of a relay process
type Settings struct {
	AppName           string        `yaml:"app_name"`
	MulticastAddress  string        `yaml:"multicast_address"`
	MulticastBasePort int           `yaml:"multicast_base_port"`
	Verbose           bool          `yaml:"verbose"`
	Outputs           []string      `yaml:"outputs"`
	Inputs            []string      `yaml:"inputs"`
	AppTick           time.Duration `yaml:"app_tick"`

	// HTTPListen is the admin API address; empty disables it
	HTTPListen string `yaml:"http_listen"`
	// GRPCHealthListen is the gRPC health service address; empty disables it
	GRPCHealthListen string `yaml:"grpc_health_listen"`
	// JWTSecret signs admin API tokens
	JWTSecret string `yaml:"jwt_secret"`
	// NoAuth disables authentication on the admin API
	NoAuth bool `yaml:"no_auth"`

	Log LogSettings `yaml:"log"`
}

// SetDefaults sets sensible default values for unset configuration fields
func (s *Settings) SetDefaults() {
	if s.AppName == "" {
		s.AppName = DefaultAppName
	}
	if s.MulticastAddress == "" {
		s.MulticastAddress = endpoint.DefaultMulticastAddress
	}
	if s.MulticastBasePort == 0 {
		s.MulticastBasePort = endpoint.DefaultMulticastBasePort
	}
	if s.AppTick <= 0 {
		s.AppTick = DefaultAppTick
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "console"
	}
}

// Validate checks if the configuration is valid
func (s *Settings) Validate() error {
	if s.AppName == "" {
		return ErrEmptyAppName
	}
	if s.MulticastBasePort < 0 || s.MulticastBasePort > math.MaxUint16 {
		return fmt.Errorf("%w: %d", ErrInvalidBasePort, s.MulticastBasePort)
	}
	ep, err := endpoint.New(s.MulticastAddress, 0)
	if err != nil {
		return fmt.Errorf("multicast_address: %w", err)
	}
	if !ep.IsMulticast() {
		return fmt.Errorf("multicast_address %s is not a multicast group", s.MulticastAddress)
	}
	return nil
}

// Aliases returns the channel alias scheme described by the settings
func (s *Settings) Aliases() endpoint.Aliases {
	return endpoint.Aliases{Base: endpoint.Endpoint{
		Host: s.MulticastAddress,
		Port: uint16(s.MulticastBasePort),
	}}
}

// CommandVar returns the name of the command variable, "<APPNAME>_CMD"
func (s *Settings) CommandVar() string {
	return CommandVar(s.AppName)
}
