package peerlink

import (
	"errors"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
)

const (
	// DefaultSendBufferSize is the SO_SNDBUF requested for outbound sockets
	DefaultSendBufferSize = 256 * 1024

	// DefaultReadBufferSize bounds a single received datagram
	DefaultReadBufferSize = 64 * 1024

	// DefaultMulticastTTL keeps multicast traffic on the local network segment
	DefaultMulticastTTL = 1
)

// Config holds configuration shared by senders and listeners
type Config struct {
	SendBufferSize int
	ReadBufferSize int
	MulticastTTL   int

	// Codec serializes messages; defaults to message.ProtoCodec
	Codec message.Codec

	// Metrics receives datagram counters; nil disables them
	Metrics *Metrics

	Logger *zap.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.SendBufferSize < 0 {
		return errors.New("send buffer size cannot be negative")
	}
	if c.ReadBufferSize < 0 {
		return errors.New("read buffer size cannot be negative")
	}
	if c.MulticastTTL < 0 || c.MulticastTTL > 255 {
		return errors.New("multicast TTL must be between 0 and 255")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.SendBufferSize == 0 {
		c.SendBufferSize = DefaultSendBufferSize
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.MulticastTTL == 0 {
		c.MulticastTTL = DefaultMulticastTTL
	}
	if c.Codec == nil {
		c.Codec = message.ProtoCodec{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// prepare validates a copy of cfg and fills its defaults
func prepare(cfg *Config) (*Config, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.SetDefaults()
	return &c, nil
}
