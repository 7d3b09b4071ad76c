package localbus

import (
	"errors"

	"go.uber.org/zap"
)

// Config holds configuration for a Community
type Config struct {
	// Name is stamped on publications that carry no community
	Name string

	// HistoryDepth is the number of values retained per variable
	HistoryDepth int

	// MailboxSize is the buffer of each client's mailbox
	MailboxSize int

	Logger *zap.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HistoryDepth < 0 {
		return errors.New("history depth cannot be negative")
	}
	if c.MailboxSize < 0 {
		return errors.New("mailbox size cannot be negative")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "local"
	}
	if c.HistoryDepth == 0 {
		c.HistoryDepth = 16
	}
	if c.MailboxSize == 0 {
		c.MailboxSize = 1024
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
