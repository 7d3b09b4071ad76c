package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultMulticastAddress is the group used for multicast channel aliases
	DefaultMulticastAddress = "224.1.1.11"
	// DefaultMulticastBasePort is the port of channel multicast_0
	DefaultMulticastBasePort = 24460
	// MaxChannels bounds the channel number of an alias
	MaxChannels = 256

	aliasPrefix = "multicast_"
)

var (
	// ErrBelowBasePort is returned when an endpoint's port is below the alias base port
	ErrBelowBasePort = errors.New("address below base port")
	// ErrChannelRange is returned for a channel number outside [0, MaxChannels)
	ErrChannelRange = errors.New("multicast channel out of range")
)

// Aliases maps channel numbers to multicast endpoints: multicast_N is Base with
// port Base.Port+N.
type Aliases struct {
	Base Endpoint
}

// DefaultAliases returns the alias scheme rooted at 224.1.1.11:24460
func DefaultAliases() Aliases {
	return Aliases{Base: Endpoint{Host: DefaultMulticastAddress, Port: DefaultMulticastBasePort}}
}

// Channel returns the endpoint of multicast channel n
func (a Aliases) Channel(n int) (Endpoint, error) {
	if n < 0 || n >= MaxChannels {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrChannelRange, n)
	}
	port := int(a.Base.Port) + n
	if port > 0xffff {
		return Endpoint{}, fmt.Errorf("%w: channel %d overflows port range", ErrChannelRange, n)
	}
	return a.Base.WithPort(uint16(port)), nil
}

// ChannelOf returns the channel number of ep relative to the base port
func (a Aliases) ChannelOf(ep Endpoint) (int, error) {
	channel := int(ep.Port) - int(a.Base.Port)
	if channel < 0 {
		return 0, fmt.Errorf("%w: %s (base %d)", ErrBelowBasePort, ep, a.Base.Port)
	}
	return channel, nil
}

// AliasOf returns the "multicast_N" name of ep
func (a Aliases) AliasOf(ep Endpoint) (string, error) {
	channel, err := a.ChannelOf(ep)
	if err != nil {
		return "", err
	}
	return aliasPrefix + strconv.Itoa(channel), nil
}

// ParseAlias reads "multicast_N". ok is false when s does not start with the
// alias prefix; err is set when it does but N is not a channel number.
func ParseAlias(s string) (channel int, ok bool, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, aliasPrefix) {
		return 0, false, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(s, aliasPrefix))
	if err != nil {
		return 0, true, fmt.Errorf("cannot parse channel alias %q: %w", s, err)
	}
	if n < 0 || n >= MaxChannels {
		return 0, true, fmt.Errorf("%w: %q", ErrChannelRange, s)
	}
	return n, true, nil
}

// IsAlias reports whether s looks like a channel alias
func IsAlias(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), aliasPrefix)
}
