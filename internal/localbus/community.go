package localbus

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
)

var (
	// ErrDuplicateClient is returned when a client name is already connected
	ErrDuplicateClient = errors.New("client name already connected")
	// ErrEmptyClientName is returned when connecting without a name
	ErrEmptyClientName = errors.New("client name cannot be empty")
	// ErrNilMessage is returned when a nil message is published
	ErrNilMessage = errors.New("message cannot be nil")
	// ErrEmptyName is returned when a message or registration has no name
	ErrEmptyName = errors.New("variable name cannot be empty")
	// ErrClosed is returned by operations on a closed community or client
	ErrClosed = errors.New("community is closed")
)

// Community is an in-memory publish/subscribe community. It keeps a bounded
// history per variable name and fans publications out to connected clients.
// It is safe for concurrent use.
type Community struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	history map[string][]*message.Message // name -> values, oldest first
	clients map[string]*Client
	closed  bool
}

// NewCommunity creates an empty community
func NewCommunity(cfg *Config) (*Community, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.SetDefaults()

	return &Community{
		config:  c,
		logger:  c.Logger.Named("localbus"),
		now:     time.Now,
		history: make(map[string][]*message.Message),
		clients: make(map[string]*Client),
	}, nil
}

// Name returns the community name
func (c *Community) Name() string {
	return c.config.Name
}

// Connect attaches a new client
func (c *Community) Connect(clientName string) (*Client, error) {
	if clientName == "" {
		return nil, ErrEmptyClientName
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if _, exists := c.clients[clientName]; exists {
		return nil, ErrDuplicateClient
	}

	client := newClient(c, clientName, c.config.MailboxSize)
	c.clients[clientName] = client
	c.logger.Debug("client connected", zap.String("client", clientName))
	return client, nil
}

func (c *Community) disconnect(client *Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clients[client.name] == client {
		delete(c.clients, client.name)
	}
}

// Latest returns the most recent value of name
func (c *Community) Latest(name string) (*message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := c.history[name]
	if len(values) == 0 {
		return nil, false
	}
	return values[len(values)-1].Copy(), true
}

// History returns up to maxCount of the most recent values of name, oldest first
func (c *Community) History(name string, maxCount int) []*message.Message {
	if maxCount <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	values := c.history[name]
	if len(values) > maxCount {
		values = values[len(values)-maxCount:]
	}

	out := make([]*message.Message, len(values))
	for i, v := range values {
		out[i] = v.Copy()
	}
	return out
}

// Names returns every variable name with a stored value, sorted
func (c *Community) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.history))
}

// Clients returns the connected client names, sorted
func (c *Community) Clients() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.clients))
}

// publish stores msg and delivers it to every interested client except from
func (c *Community) publish(from *Client, msg *message.Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if msg.Name == "" {
		return ErrEmptyName
	}

	stored := msg.Copy()
	if stored.Source == "" {
		stored.Source = from.name
	}
	if stored.Community == "" {
		stored.Community = c.config.Name
	}
	if stored.Time.IsZero() {
		stored.Time = c.now()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	values := append(c.history[stored.Name], stored)
	if len(values) > c.config.HistoryDepth {
		values = values[len(values)-c.config.HistoryDepth:]
	}
	c.history[stored.Name] = values

	recipients := make([]*Client, 0, len(c.clients))
	for _, client := range c.clients {
		if client != from {
			recipients = append(recipients, client)
		}
	}
	c.mu.Unlock()

	for _, client := range recipients {
		if client.wants(stored) {
			client.deliver(stored)
		}
	}
	return nil
}

// latestMatching returns the latest value of every stored name accepted by match
func (c *Community) latestMatching(match func(*message.Message) bool) []*message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*message.Message
	for _, name := range slices.Sorted(maps.Keys(c.history)) {
		values := c.history[name]
		latest := values[len(values)-1]
		if match(latest) {
			out = append(out, latest)
		}
	}
	return out
}

// Close disconnects every client and clears the history.
// It is safe to call more than once.
func (c *Community) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	clients := slices.Collect(maps.Values(c.clients))
	c.clients = make(map[string]*Client)
	c.history = make(map[string][]*message.Message)
	c.mu.Unlock()

	for _, client := range clients {
		client.shutdown()
	}
	return nil
}
