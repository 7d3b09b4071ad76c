package localbus

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
	"github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

// Client is one connection to a Community. It implements relay.Bus.
type Client struct {
	community *Community
	name      string
	logger    *zap.Logger

	mu        sync.Mutex
	exact     map[string]struct{}
	wildcards map[routingtable.WildcardKey]struct{}
	mail      chan *message.Message
	closed    bool

	dropped atomic.Uint64
}

func newClient(c *Community, name string, mailboxSize int) *Client {
	return &Client{
		community: c,
		name:      name,
		logger:    c.logger.With(zap.String("client", name)),
		exact:     make(map[string]struct{}),
		wildcards: make(map[routingtable.WildcardKey]struct{}),
		mail:      make(chan *message.Message, mailboxSize),
	}
}

// Name returns the client name
func (cl *Client) Name() string {
	return cl.name
}

// Register subscribes to name and delivers its latest value, if any
func (cl *Client) Register(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	cl.exact[name] = struct{}{}
	cl.mu.Unlock()

	if latest, ok := cl.community.Latest(name); ok && latest.Source != cl.name {
		cl.deliver(latest)
	}
	return nil
}

// RegisterWildcard subscribes to names matching namePattern from sources
// matching appPattern and delivers the latest matching values
func (cl *Client) RegisterWildcard(namePattern, appPattern string) error {
	key := routingtable.WildcardKey{
		NamePattern: strings.TrimSpace(namePattern),
		AppPattern:  strings.TrimSpace(appPattern),
	}
	if key.NamePattern == "" {
		return ErrEmptyName
	}
	if key.AppPattern == "" {
		key.AppPattern = "*"
	}

	cl.mu.Lock()
	if cl.closed {
		cl.mu.Unlock()
		return ErrClosed
	}
	cl.wildcards[key] = struct{}{}
	cl.mu.Unlock()

	latest := cl.community.latestMatching(func(m *message.Message) bool {
		return m.Source != cl.name && matches(key, m)
	})
	for _, m := range latest {
		cl.deliver(m)
	}
	return nil
}

// Unregister removes the exact subscription for name
func (cl *Client) Unregister(name string) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return ErrClosed
	}
	delete(cl.exact, strings.TrimSpace(name))
	return nil
}

// IsRegisteredFor reports whether the client holds an exact subscription for name
func (cl *Client) IsRegisteredFor(name string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	_, ok := cl.exact[name]
	return ok
}

// Publish posts msg to the community. The client never receives its own
// publications.
func (cl *Client) Publish(msg *message.Message) error {
	cl.mu.Lock()
	closed := cl.closed
	cl.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return cl.community.publish(cl, msg)
}

// Mail returns the client's mailbox. It is closed when the client disconnects.
func (cl *Client) Mail() <-chan *message.Message {
	return cl.mail
}

// Dropped returns the number of messages lost to a full mailbox
func (cl *Client) Dropped() uint64 {
	return cl.dropped.Load()
}

// Close disconnects the client and closes its mailbox
func (cl *Client) Close() error {
	cl.community.disconnect(cl)
	cl.shutdown()
	return nil
}

func (cl *Client) shutdown() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return
	}
	cl.closed = true
	close(cl.mail)
}

func (cl *Client) wants(m *message.Message) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.exact[m.Name]; ok {
		return true
	}
	for key := range cl.wildcards {
		if matches(key, m) {
			return true
		}
	}
	return false
}

func (cl *Client) deliver(m *message.Message) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.closed {
		return
	}

	select {
	case cl.mail <- m.Copy():
	default:
		cl.dropped.Add(1)
		cl.logger.Warn("mailbox full, dropping message", zap.String("name", m.Name))
	}
}

func matches(key routingtable.WildcardKey, m *message.Message) bool {
	return routingtable.Match(key.NamePattern, m.Name) && routingtable.Match(key.AppPattern, m.Source)
}

// Verify that Client implements the relay.Bus interface at compile time
var _ relay.Bus = (*Client)(nil)
