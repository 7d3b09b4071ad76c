package peerlink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
	"github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

// UDPListener implements peerlink.Listener
type UDPListener struct {
	local     endpoint.Endpoint
	multicast bool
	whitelist []string
	queue     peerlink.Queue
	config    *Config
	logger    *zap.Logger

	mu    sync.Mutex
	state peerlink.ListenerState
	conn  net.PacketConn
	done  chan struct{}

	received  atomic.Uint64
	queued    atomic.Uint64
	discarded atomic.Uint64
	malformed atomic.Uint64
}

// NewUDPListener creates a listener for local that pushes accepted messages
// onto queue. The listener does nothing until Run is called.
func NewUDPListener(local endpoint.Endpoint, multicast bool, whitelist []string, queue peerlink.Queue, cfg *Config) (*UDPListener, error) {
	if queue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	c, err := prepare(cfg)
	if err != nil {
		return nil, err
	}
	if !local.Addr().IsValid() {
		return nil, fmt.Errorf("%w: %q", endpoint.ErrInvalidAddress, local.Host)
	}
	if multicast && !local.IsMulticast() {
		return nil, fmt.Errorf("%s is not a multicast group", local)
	}

	return &UDPListener{
		local:     local,
		multicast: multicast,
		whitelist: slices.Clone(whitelist),
		queue:     queue,
		config:    c,
		logger:    c.Logger.Named("listener").With(zap.Stringer("endpoint", local)),
		state:     peerlink.ListenerCreated,
	}, nil
}

// Endpoint returns the local endpoint
func (l *UDPListener) Endpoint() endpoint.Endpoint {
	return l.local
}

// Multicast reports whether the listener joins a multicast group
func (l *UDPListener) Multicast() bool {
	return l.multicast
}

// Whitelist returns the accepted name patterns
func (l *UDPListener) Whitelist() []string {
	return slices.Clone(l.whitelist)
}

// State returns the lifecycle state
func (l *UDPListener) State() peerlink.ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns the datagram counters
func (l *UDPListener) Stats() peerlink.ListenerStats {
	return peerlink.ListenerStats{
		Received:  l.received.Load(),
		Queued:    l.queued.Load(),
		Discarded: l.discarded.Load(),
		Malformed: l.malformed.Load(),
	}
}

// LocalAddr returns the bound socket address, or nil before Run
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run binds the socket and starts the receive loop
func (l *UDPListener) Run(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case peerlink.ListenerRunning:
		return peerlink.ErrAlreadyRunning
	case peerlink.ListenerStopped:
		return peerlink.ErrListenerStopped
	}

	conn, err := l.open(ctx)
	if err != nil {
		return err
	}
	l.conn = conn
	l.done = make(chan struct{})
	l.state = peerlink.ListenerRunning

	go l.receiveLoop(conn, l.done)

	// cancellation of ctx stops the listener
	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-done:
		}
	}(l.done)

	l.logger.Info("listener running",
		zap.Bool("multicast", l.multicast),
		zap.Strings("whitelist", l.whitelist))
	return nil
}

func (l *UDPListener) open(ctx context.Context) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: socketControl(0)}

	if !l.multicast {
		conn, err := lc.ListenPacket(ctx, "udp4", l.local.String())
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", l.local, err)
		}
		return conn, nil
	}

	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(int(l.local.Port))))
	if err != nil {
		return nil, fmt.Errorf("bind multicast port %d: %w", l.local.Port, err)
	}
	group := &net.UDPAddr{IP: l.local.UDPAddr().IP}
	if err := ipv4.NewPacketConn(conn).JoinGroup(nil, group); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join multicast group %s: %w", l.local.Host, err)
	}
	return conn, nil
}

const (
	minReceiveBackoff = 5 * time.Millisecond
	maxReceiveBackoff = time.Second
)

// receiveBackoff returns the pause after a failed read that followed a
// pause of delay
func receiveBackoff(delay time.Duration) time.Duration {
	if delay <= 0 {
		return minReceiveBackoff
	}
	return min(2*delay, maxReceiveBackoff)
}

func (l *UDPListener) receiveLoop(conn net.PacketConn, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, l.config.ReadBufferSize)
	var delay time.Duration
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			delay = receiveBackoff(delay)
			l.logger.Warn("receive failed", zap.Error(err), zap.Duration("retry_in", delay))
			time.Sleep(delay)
			continue
		}
		delay = 0
		l.handleDatagram(buf[:n], from)
	}
}

func (l *UDPListener) handleDatagram(payload []byte, from net.Addr) {
	label := l.local.String()
	l.received.Add(1)
	if m := l.config.Metrics; m != nil {
		m.Received.WithLabelValues(label).Inc()
	}

	msg, err := l.config.Codec.Unmarshal(payload)
	if err != nil {
		l.malformed.Add(1)
		if m := l.config.Metrics; m != nil {
			m.Malformed.WithLabelValues(label).Inc()
		}
		l.logger.Debug("discarding malformed datagram", zap.Stringer("from", from), zap.Error(err))
		return
	}

	if !l.Accepts(msg) {
		l.discard(label)
		l.logger.Debug("discarding message outside whitelist", zap.String("name", msg.Name))
		return
	}

	if !l.queue.Push(msg) {
		l.discard(label)
		l.logger.Warn("inbound queue full, dropping message", zap.String("name", msg.Name))
		return
	}

	l.queued.Add(1)
	if m := l.config.Metrics; m != nil {
		m.Queued.WithLabelValues(label).Inc()
	}
}

func (l *UDPListener) discard(label string) {
	l.discarded.Add(1)
	if m := l.config.Metrics; m != nil {
		m.Discarded.WithLabelValues(label).Inc()
	}
}

// Accepts reports whether msg passes the whitelist
func (l *UDPListener) Accepts(msg *message.Message) bool {
	return len(l.whitelist) == 0 || routingtable.MatchAny(l.whitelist, msg.Name)
}

// Stop closes the socket and waits for the receive loop to exit.
// It is safe to call more than once.
func (l *UDPListener) Stop() error {
	l.mu.Lock()
	if l.state == peerlink.ListenerStopped {
		l.mu.Unlock()
		return nil
	}
	wasRunning := l.state == peerlink.ListenerRunning
	l.state = peerlink.ListenerStopped
	conn, done := l.conn, l.done
	l.mu.Unlock()

	if !wasRunning {
		return nil
	}

	err := conn.Close()
	<-done
	l.logger.Info("listener stopped", zap.Any("stats", l.Stats()))
	return err
}

// Verify that UDPListener implements the Listener interface at compile time
var _ peerlink.Listener = (*UDPListener)(nil)
