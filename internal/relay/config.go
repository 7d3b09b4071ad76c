package relay

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/internal/peerlink"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	peerlinkpkg "github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
)

var (
	// ErrEmptyAppName is returned when the application name is empty
	ErrEmptyAppName = errors.New("app name cannot be empty")
	// ErrNilBus is returned when the engine is created without a bus
	ErrNilBus = errors.New("bus cannot be nil")
	// ErrClosed is returned by operations on a closed engine
	ErrClosed = errors.New("relay is closed")
	// ErrAlreadyRunning is returned when Run is called twice
	ErrAlreadyRunning = errors.New("relay already running")
)

// SenderFactory opens an outbound socket
type SenderFactory func(ctx context.Context, dest endpoint.Endpoint, multicast bool) (peerlinkpkg.Sender, error)

// Config represents configuration for an Engine
type Config struct {
	// AppName names the bus client and the "<APPNAME>_CMD" command variable
	AppName string

	// Aliases maps multicast_N channel names to endpoints
	Aliases endpoint.Aliases

	// Verbose logs every send and every republished share at Info level
	Verbose bool

	// Tick is the period of the housekeeping loop in Run
	Tick time.Duration

	// QueueCapacity bounds the inbound queue; zero is unbounded
	QueueCapacity int

	Clock      clock.Clock
	Logger     *zap.Logger
	Registerer prometheus.Registerer

	// Transport configures senders and listeners
	Transport *peerlink.Config

	// Resolver resolves host names in route descriptions
	Resolver shareconfig.Resolver

	// OpenSender opens outbound sockets; defaults to UDP
	OpenSender SenderFactory
}

// NewConfig creates a configuration with safe defaults for appName
func NewConfig(appName string) *Config {
	return &Config{
		AppName: appName,
		Aliases: endpoint.DefaultAliases(),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.AppName == "" {
		return ErrEmptyAppName
	}
	if c.Tick < 0 {
		return errors.New("tick cannot be negative")
	}
	if c.QueueCapacity < 0 {
		return errors.New("queue capacity cannot be negative")
	}
	if c.Transport != nil {
		if err := c.Transport.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.Aliases.Base.IsZero() {
		c.Aliases = endpoint.DefaultAliases()
	}
	if c.Tick == 0 {
		c.Tick = shareconfig.DefaultAppTick
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Resolver == nil {
		c.Resolver = endpoint.Resolve
	}
}
