package relay

import (
	"context"
	"io"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
)

// Status variables published by the relay
const (
	OutputSummaryVar = "PSHARE_OUTPUT_SUMMARY"
	InputSummaryVar  = "PSHARE_INPUT_SUMMARY"
)

// Bus is the relay's connection to the local publish/subscribe community
type Bus interface {
	// Name returns the client name publications are stamped with
	Name() string

	// Register subscribes to an exact variable name. The latest stored value,
	// if any, is delivered immediately.
	Register(name string) error

	// RegisterWildcard subscribes to every variable whose name matches
	// namePattern published by a client matching appPattern
	RegisterWildcard(namePattern, appPattern string) error

	// Unregister removes an exact subscription
	Unregister(name string) error

	// IsRegisteredFor reports whether this client holds an exact subscription
	// for name
	IsRegisteredFor(name string) bool

	// Publish posts msg to the community
	Publish(msg *message.Message) error

	// Mail delivers messages for this client's subscriptions
	Mail() <-chan *message.Message
}

// OutputRoute describes one output registration
type OutputRoute struct {
	SrcName   string
	DestName  string
	Dest      endpoint.Endpoint
	Multicast bool

	// Frequency caps sends per second; zero forwards every notification
	Frequency float64
	// Duration bounds the route lifetime; negative means unlimited and zero
	// sends the latest value exactly once
	Duration time.Duration
	// MaxShares bounds the number of sends; negative means unlimited
	MaxShares int
}

// InputRoute describes one input registration
type InputRoute struct {
	Local     endpoint.Endpoint
	Multicast bool
	Whitelist []string
}

// RouteInfo describes one output route or wildcard rule in a Report
type RouteInfo struct {
	Source          string  `json:"source"`
	App             string  `json:"app,omitempty"`
	DestName        string  `json:"dest_name"`
	Address         string  `json:"address"`
	Alias           string  `json:"alias,omitempty"`
	Multicast       bool    `json:"multicast"`
	Frequency       float64 `json:"frequency"`
	Duration        float64 `json:"duration_seconds"`
	MaxShares       int     `json:"max_shares"`
	SharesCompleted int     `json:"shares_completed"`
	Status          string  `json:"status"`
}

// ListenerInfo describes one input listener in a Report
type ListenerInfo struct {
	Address   string                 `json:"address"`
	Alias     string                 `json:"alias,omitempty"`
	Multicast bool                   `json:"multicast"`
	Whitelist []string               `json:"whitelist,omitempty"`
	State     string                 `json:"state"`
	Stats     peerlink.ListenerStats `json:"stats"`
}

// Report is a snapshot of the relay's routing state
type Report struct {
	AppName   string         `json:"app_name"`
	Outputs   []RouteInfo    `json:"outputs"`
	Wildcards []RouteInfo    `json:"wildcards"`
	Inputs    []ListenerInfo `json:"inputs"`
	Generated time.Time      `json:"generated"`
}

// HealthStatus summarizes the relay's condition
type HealthStatus struct {
	Healthy       bool   `json:"healthy"`
	Running       bool   `json:"running"`
	OutputRoutes  int    `json:"output_routes"`
	WildcardRules int    `json:"wildcard_rules"`
	Listeners     int    `json:"listeners"`
	Senders       int    `json:"senders"`
	QueueDepth    int    `json:"queue_depth"`
	Message       string `json:"message,omitempty"`
}

// Relay forwards messages between the local bus and remote communities.
// All methods are safe for concurrent use.
type Relay interface {
	io.Closer

	// AddOutputRoute opens a socket for the destination if needed and adds the
	// route. A new source name is registered with the bus.
	AddOutputRoute(ctx context.Context, route OutputRoute) error

	// AddInputRoute starts a listener on route.Local. A second listener on the
	// same endpoint is a KindDuplicateListener error.
	AddInputRoute(ctx context.Context, route InputRoute) error

	// OnLocalPublish forwards one bus message along its routes
	OnLocalPublish(msg *message.Message)

	// DrainInbound republishes every queued inbound message whose name is not
	// registered locally
	DrainInbound()

	// PublishStatusSummary publishes the status variables, at most once per second
	PublishStatusSummary()

	// DoRegistrations registers every routed name and wildcard pair with the bus
	DoRegistrations() error

	// HandleCommand applies a "cmd=output,..." or "cmd=input,..." command
	HandleCommand(ctx context.Context, command string) error

	// Report returns a snapshot of routes and listeners
	Report() Report

	// Health returns the relay's health summary
	Health() HealthStatus

	// Run processes bus mail, inbound traffic and periodic work until ctx is done
	Run(ctx context.Context) error
}
