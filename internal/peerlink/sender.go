package peerlink

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
)

// UDPSender implements peerlink.Sender on an unconnected UDP socket
type UDPSender struct {
	dest      endpoint.Endpoint
	addr      *net.UDPAddr
	multicast bool
	logger    *zap.Logger

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
}

// OpenSender opens a UDP socket for datagrams to dest. The socket has
// SO_REUSEADDR and the configured send buffer size; multicast sockets also get
// the configured TTL with loopback enabled.
func OpenSender(ctx context.Context, dest endpoint.Endpoint, multicast bool, cfg *Config) (*UDPSender, error) {
	c, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	if !dest.Addr().IsValid() {
		return nil, fmt.Errorf("%w: %q", endpoint.ErrInvalidAddress, dest.Host)
	}

	lc := net.ListenConfig{Control: socketControl(c.SendBufferSize)}
	conn, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("open socket for %s: %w", dest, err)
	}

	if multicast {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastTTL(c.MulticastTTL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set multicast TTL for %s: %w", dest, err)
		}
		if err := pc.SetMulticastLoopback(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable multicast loopback for %s: %w", dest, err)
		}
	}

	return &UDPSender{
		dest:      dest,
		addr:      dest.UDPAddr(),
		multicast: multicast,
		logger:    c.Logger.Named("sender").With(zap.Stringer("endpoint", dest)),
		conn:      conn,
	}, nil
}

// Endpoint returns the destination endpoint
func (s *UDPSender) Endpoint() endpoint.Endpoint {
	return s.dest
}

// Multicast reports whether the destination is a multicast group
func (s *UDPSender) Multicast() bool {
	return s.multicast
}

// Send writes payload as one datagram
func (s *UDPSender) Send(payload []byte) error {
	if len(payload) > peerlink.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", peerlink.ErrPayloadTooLarge, len(payload), peerlink.MaxPayloadSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return peerlink.ErrSenderClosed
	}

	n, err := s.conn.WriteTo(payload, s.addr)
	if err != nil {
		return fmt.Errorf("send to %s: %w", s.dest, err)
	}
	if n != len(payload) {
		return fmt.Errorf("send to %s: short write of %d/%d bytes", s.dest, n, len(payload))
	}
	return nil
}

// Close closes the socket. It is safe to call more than once.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("sender closed")
	return s.conn.Close()
}

// Verify that UDPSender implements the Sender interface at compile time
var _ peerlink.Sender = (*UDPSender)(nil)
