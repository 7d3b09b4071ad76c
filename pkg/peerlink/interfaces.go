package peerlink

import (
	"context"
	"errors"
	"io"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
)

// MaxPayloadSize is the largest datagram payload a Sender accepts (48 KiB)
const MaxPayloadSize = 48 * 1024

var (
	// ErrPayloadTooLarge is returned by Send for payloads above MaxPayloadSize
	ErrPayloadTooLarge = errors.New("payload exceeds maximum datagram size")
	// ErrSenderClosed is returned by Send after Close
	ErrSenderClosed = errors.New("sender is closed")
	// ErrAlreadyRunning is returned by Run on a listener that was already started
	ErrAlreadyRunning = errors.New("listener already running")
	// ErrListenerStopped is returned by Run on a stopped listener
	ErrListenerStopped = errors.New("listener stopped")
)

// ListenerState is the lifecycle state of a Listener
type ListenerState int

const (
	ListenerCreated ListenerState = iota
	ListenerRunning
	ListenerStopped
)

func (s ListenerState) String() string {
	switch s {
	case ListenerCreated:
		return "Created"
	case ListenerRunning:
		return "Running"
	case ListenerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Sender is an open UDP socket bound to one destination endpoint.
// A Sender is shared by every route that targets its endpoint.
type Sender interface {
	io.Closer

	// Endpoint returns the destination of every datagram sent
	Endpoint() endpoint.Endpoint

	// Multicast reports whether the destination is a multicast group
	Multicast() bool

	// Send writes payload as a single datagram. Payloads larger than
	// MaxPayloadSize are rejected before any system call.
	Send(payload []byte) error
}

// ListenerStats counts datagrams seen by a Listener
type ListenerStats struct {
	Received  uint64
	Queued    uint64
	Discarded uint64
	Malformed uint64
}

// Listener receives datagrams on one local endpoint and queues the decoded
// messages that pass its whitelist.
type Listener interface {
	// Endpoint returns the local endpoint (or multicast group) listened on
	Endpoint() endpoint.Endpoint

	// Multicast reports whether the listener joined a multicast group
	Multicast() bool

	// Whitelist returns the name patterns accepted; empty accepts everything
	Whitelist() []string

	// State returns the lifecycle state
	State() ListenerState

	// Run opens the socket and starts the receive loop in its own goroutine.
	// It returns once the socket is bound. The loop stops when ctx is done or
	// Stop is called.
	Run(ctx context.Context) error

	// Stop closes the socket and waits for the receive loop to exit
	Stop() error

	// Stats returns the datagram counters
	Stats() ListenerStats
}

// Queue is the multiple-producer single-consumer FIFO shared by all listeners
type Queue interface {
	// Push appends a message; it returns false if the message was dropped
	Push(msg *message.Message) bool

	// Drain removes and returns every queued message in arrival order
	Drain() []*message.Message

	// Ready receives a value after Push; signals are coalesced
	Ready() <-chan struct{}

	// Len returns the number of queued messages
	Len() int
}
