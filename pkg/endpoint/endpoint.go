package endpoint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress is returned when a host cannot be read as an IPv4 address
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	// ErrInvalidPort is returned when a port is missing or out of range
	ErrInvalidPort = errors.New("invalid port")
	// ErrUnresolvable is returned when a hostname has no IPv4 address
	ErrUnresolvable = errors.New("cannot resolve host to an IPv4 address")
)

// Endpoint is an immutable IPv4 host and UDP port pair
type Endpoint struct {
	Host string
	Port uint16
}

// New creates an Endpoint from a dotted IPv4 host and a port
func New(host string, port uint16) (Endpoint, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil || !addr.Is4() {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, host)
	}
	return Endpoint{Host: addr.String(), Port: port}, nil
}

// Parse reads a numeric "a.b.c.d:port" string
func Parse(s string) (Endpoint, error) {
	host, port, err := splitHostPort(s)
	if err != nil {
		return Endpoint{}, err
	}
	return New(host, port)
}

// Resolve reads a "host:port" string where host may be a hostname.
// Hostnames are resolved to their first IPv4 address.
func Resolve(ctx context.Context, s string) (Endpoint, error) {
	host, port, err := splitHostPort(s)
	if err != nil {
		return Endpoint{}, err
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if !addr.Is4() {
			return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidAddress, host)
		}
		return Endpoint{Host: addr.String(), Port: port}, nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %q: %v", ErrUnresolvable, host, err)
	}
	for _, ip := range ips {
		ip = ip.Unmap()
		if ip.Is4() {
			return Endpoint{Host: ip.String(), Port: port}, nil
		}
	}
	return Endpoint{}, fmt.Errorf("%w: %q", ErrUnresolvable, host)
}

func splitHostPort(s string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	return host, uint16(port), nil
}

// String returns "host:port"
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Addr returns the host as a netip.Addr. The zero Addr is returned for a zero Endpoint.
func (e Endpoint) Addr() netip.Addr {
	addr, _ := netip.ParseAddr(e.Host)
	return addr
}

// UDPAddr returns the endpoint as a *net.UDPAddr
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(e.Addr(), e.Port))
}

// IsMulticast reports whether the host is an IPv4 multicast group
func (e Endpoint) IsMulticast() bool {
	return e.Addr().IsMulticast()
}

// IsZero reports whether e is the zero Endpoint
func (e Endpoint) IsZero() bool {
	return e == Endpoint{}
}

// WithPort returns a copy of e on a different port
func (e Endpoint) WithPort(port uint16) Endpoint {
	return Endpoint{Host: e.Host, Port: port}
}

// Compare orders endpoints by address, then by port
func Compare(a, b Endpoint) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return cmp.Compare(a.Port, b.Port)
}
