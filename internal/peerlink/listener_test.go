package peerlink

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
)

// startListener runs a unicast listener on an ephemeral loopback port
func startListener(t *testing.T, whitelist []string) (*UDPListener, *InboundQueue, net.Addr) {
	t.Helper()

	queue := NewInboundQueue(0)
	l, err := NewUDPListener(endpoint.Endpoint{Host: "127.0.0.1", Port: 0}, false, whitelist, queue,
		&Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	require.Equal(t, peerlink.ListenerCreated, l.State())

	require.NoError(t, l.Run(context.Background()))
	t.Cleanup(func() { l.Stop() })
	return l, queue, l.LocalAddr()
}

func sendRaw(t *testing.T, to net.Addr, payload []byte) {
	t.Helper()
	conn, err := net.Dial("udp4", to.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func sendMessage(t *testing.T, to net.Addr, msg *message.Message) {
	t.Helper()
	payload, err := message.ProtoCodec{}.Marshal(msg)
	require.NoError(t, err)
	sendRaw(t, to, payload)
}

func TestUDPListener_QueuesReceivedMessages(t *testing.T) {
	l, queue, addr := startListener(t, nil)
	assert.Equal(t, peerlink.ListenerRunning, l.State())

	sendMessage(t, addr, message.NewDouble("NAV_X", 12.5))

	require.Eventually(t, func() bool { return queue.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	msgs := queue.Drain()
	assert.Equal(t, "NAV_X", msgs[0].Name)
	assert.Equal(t, 12.5, msgs[0].Double)
	assert.Equal(t, uint64(1), l.Stats().Queued)
}

func TestUDPListener_Whitelist(t *testing.T) {
	l, queue, addr := startListener(t, []string{"FOO*"})

	sendMessage(t, addr, message.NewString("BAR", "dropped"))
	sendMessage(t, addr, message.NewString("FOOBAR", "kept"))

	require.Eventually(t, func() bool { return l.Stats().Received == 2 }, 2*time.Second, 10*time.Millisecond)

	msgs := queue.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, "FOOBAR", msgs[0].Name)
	assert.Equal(t, uint64(1), l.Stats().Discarded)
}

func TestUDPListener_MalformedDatagramsAreCounted(t *testing.T) {
	l, queue, addr := startListener(t, nil)

	sendRaw(t, addr, []byte{0xff, 0xff, 0xff})
	sendMessage(t, addr, message.NewDouble("OK", 1))

	require.Eventually(t, func() bool { return queue.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), l.Stats().Malformed)
	assert.Equal(t, peerlink.ListenerRunning, l.State(), "malformed input must not stop the listener")
}

func TestUDPListener_Lifecycle(t *testing.T) {
	l, _, _ := startListener(t, nil)

	assert.ErrorIs(t, l.Run(context.Background()), peerlink.ErrAlreadyRunning)

	require.NoError(t, l.Stop())
	assert.Equal(t, peerlink.ListenerStopped, l.State())
	require.NoError(t, l.Stop(), "Stop should be idempotent")
	assert.ErrorIs(t, l.Run(context.Background()), peerlink.ErrListenerStopped)
}

func TestUDPListener_ContextCancellationStops(t *testing.T) {
	queue := NewInboundQueue(0)
	l, err := NewUDPListener(endpoint.Endpoint{Host: "127.0.0.1", Port: 0}, false, nil, queue, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Run(ctx))
	cancel()

	require.Eventually(t, func() bool { return l.State() == peerlink.ListenerStopped }, 2*time.Second, 10*time.Millisecond)
}

func TestNewUDPListener_Validation(t *testing.T) {
	queue := NewInboundQueue(0)

	_, err := NewUDPListener(endpoint.Endpoint{Host: "127.0.0.1", Port: 9020}, false, nil, nil, nil)
	assert.Error(t, err, "nil queue")

	_, err = NewUDPListener(endpoint.Endpoint{Host: "bogus", Port: 9020}, false, nil, queue, nil)
	assert.ErrorIs(t, err, endpoint.ErrInvalidAddress)

	_, err = NewUDPListener(endpoint.Endpoint{Host: "127.0.0.1", Port: 9020}, true, nil, queue, nil)
	assert.Error(t, err, "unicast address with multicast flag")
}

func TestUDPListener_Accepts(t *testing.T) {
	l := &UDPListener{whitelist: []string{"NAV_*", "GPS?"}}

	assert.True(t, l.Accepts(message.NewDouble("NAV_X", 0)))
	assert.True(t, l.Accepts(message.NewDouble("GPS1", 0)))
	assert.False(t, l.Accepts(message.NewDouble("GPS12", 0)))

	open := &UDPListener{}
	assert.True(t, open.Accepts(message.NewDouble("ANY", 0)))
}

// flakyConn fails a fixed number of reads and then reports itself closed
type flakyConn struct {
	net.PacketConn
	failures int
	reads    int
}

func (c *flakyConn) ReadFrom([]byte) (int, net.Addr, error) {
	c.reads++
	if c.reads <= c.failures {
		return 0, nil, errors.New("transient receive error")
	}
	return 0, nil, net.ErrClosed
}

func TestReceiveBackoff(t *testing.T) {
	assert.Equal(t, minReceiveBackoff, receiveBackoff(0))
	assert.Equal(t, 2*minReceiveBackoff, receiveBackoff(minReceiveBackoff))
	assert.Equal(t, maxReceiveBackoff, receiveBackoff(maxReceiveBackoff))
	assert.Equal(t, maxReceiveBackoff, receiveBackoff(700*time.Millisecond))
}

func TestUDPListener_ReceiveErrorsBackOff(t *testing.T) {
	l, err := NewUDPListener(endpoint.Endpoint{Host: "127.0.0.1", Port: 0}, false, nil, NewInboundQueue(0),
		&Config{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	conn := &flakyConn{failures: 3}
	done := make(chan struct{})

	start := time.Now()
	l.receiveLoop(conn, done)
	elapsed := time.Since(start)

	assert.Equal(t, 4, conn.reads)
	// 5ms + 10ms + 20ms between the failed reads
	assert.GreaterOrEqual(t, elapsed, 35*time.Millisecond)
	select {
	case <-done:
	default:
		t.Fatal("receive loop should close done on exit")
	}
}
