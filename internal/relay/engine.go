package relay

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rmacdonaldsmith/pshare-go/internal/peerlink"
	"github.com/rmacdonaldsmith/pshare-go/internal/routingtable"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
	peerlinkpkg "github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
	relaypkg "github.com/rmacdonaldsmith/pshare-go/pkg/relay"
	routingtablepkg "github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

// Engine implements relaypkg.Relay. It owns the routing table, one sender
// per destination endpoint and one listener per local endpoint.
//
// The routing table, the socket maps and the per-route counters are guarded
// by mu. Listeners run on their own goroutines and only touch the inbound
// queue, which DrainInbound empties without holding mu.
type Engine struct {
	config     *Config
	bus        relaypkg.Bus
	logger     *zap.Logger
	clock      clock.Clock
	codec      message.Codec
	parser     *shareconfig.Parser
	metrics    *Metrics
	transport  *peerlink.Config
	openSender SenderFactory
	commandVar string
	started    time.Time

	queue *peerlink.InboundQueue

	// listenCtx outlives the requests that add listeners
	listenCtx    context.Context
	cancelListen context.CancelFunc

	mu        sync.Mutex
	table     *routingtable.InMemoryRoutingTable
	senders   map[endpoint.Endpoint]peerlinkpkg.Sender
	listeners map[endpoint.Endpoint]peerlinkpkg.Listener
	status    *rate.Limiter
	running   bool
	closed    bool
}

// NewEngine creates a relay attached to bus and registers the command variable.
// No sockets are opened until routes are added.
func NewEngine(config *Config, bus relaypkg.Bus) (*Engine, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if bus == nil {
		return nil, ErrNilBus
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg := *config
	cfg.SetDefaults()

	metrics := NewMetrics(cfg.Registerer)

	var transport peerlink.Config
	if cfg.Transport != nil {
		transport = *cfg.Transport
	}
	if transport.Logger == nil {
		transport.Logger = cfg.Logger
	}
	if transport.Metrics == nil {
		transport.Metrics = peerlink.NewMetrics(cfg.Registerer)
	}
	transport.SetDefaults()

	now := cfg.Clock.Now()
	status := rate.NewLimiter(rate.Every(time.Second), 1)
	// the first summary is due one second after startup
	status.AllowN(now, 1)

	listenCtx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		config:       &cfg,
		bus:          bus,
		logger:       cfg.Logger.Named("relay"),
		clock:        cfg.Clock,
		codec:        transport.Codec,
		parser:       &shareconfig.Parser{Aliases: cfg.Aliases, Resolve: cfg.Resolver},
		metrics:      metrics,
		transport:    &transport,
		openSender:   cfg.OpenSender,
		commandVar:   shareconfig.CommandVar(cfg.AppName),
		started:      now,
		queue:        peerlink.NewInboundQueue(cfg.QueueCapacity),
		listenCtx:    listenCtx,
		cancelListen: cancel,
		table:        routingtable.NewInMemoryRoutingTable(),
		senders:      make(map[endpoint.Endpoint]peerlinkpkg.Sender),
		listeners:    make(map[endpoint.Endpoint]peerlinkpkg.Listener),
		status:       status,
	}
	if e.openSender == nil {
		e.openSender = e.openUDPSender
	}

	if err := bus.Register(e.commandVar); err != nil {
		cancel()
		return nil, fmt.Errorf("register %s: %w", e.commandVar, err)
	}

	return e, nil
}

func (e *Engine) openUDPSender(ctx context.Context, dest endpoint.Endpoint, multicast bool) (peerlinkpkg.Sender, error) {
	s, err := peerlink.OpenSender(ctx, dest, multicast, e.transport)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CommandVar returns the name of the variable carrying runtime commands
func (e *Engine) CommandVar() string {
	return e.commandVar
}

// Parser returns the parser used for route descriptions and commands
func (e *Engine) Parser() *shareconfig.Parser {
	return e.parser
}

// AddOutputRoute adds a route from a local name (or wildcard pattern) to a
// remote endpoint, opening the endpoint's socket on first use
func (e *Engine) AddOutputRoute(ctx context.Context, out relaypkg.OutputRoute) error {
	const op = "add output route"

	srcName := strings.TrimSpace(out.SrcName)
	if srcName == "" {
		return relaypkg.Errorf(relaypkg.KindConfig, op, "source name cannot be empty")
	}
	if !out.Dest.Addr().Is4() {
		return relaypkg.Errorf(relaypkg.KindConfig, op, "%w: %q", endpoint.ErrInvalidAddress, out.Dest.Host)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return relaypkg.Wrap(relaypkg.KindConfig, op, ErrClosed)
	}

	sender, opened := e.senders[out.Dest], false
	if sender == nil {
		s, err := e.openSender(ctx, out.Dest, out.Multicast)
		if err != nil {
			e.metrics.Errors.WithLabelValues(relaypkg.KindSocket.String()).Inc()
			return relaypkg.Wrap(relaypkg.KindSocket, op, err)
		}
		sender, opened = s, true
		e.senders[out.Dest] = sender
	}

	destName := strings.TrimSpace(out.DestName)
	if destName == "" && !routingtablepkg.IsWildcard(srcName) {
		destName = srcName
	}

	now := e.clock.Now()
	route := routingtablepkg.Route{
		SrcName:   srcName,
		DestName:  destName,
		Dest:      out.Dest,
		Multicast: out.Multicast,
		Frequency: out.Frequency,
		Duration:  out.Duration,
		MaxShares: out.MaxShares,
	}

	res, err := e.table.AddRoute(srcName, route, now)
	if err != nil {
		if opened {
			sender.Close()
			delete(e.senders, out.Dest)
		}
		return relaypkg.Wrap(relaypkg.KindConfig, op, err)
	}

	if err := e.registerInterest(res); err != nil {
		// a refreshed route was already live; only a new one is undone
		if !res.Refreshed {
			e.table.RemoveRoute(res.Route)
			if opened {
				sender.Close()
				delete(e.senders, out.Dest)
			}
		}
		return relaypkg.Wrap(relaypkg.KindConfig, op, err)
	}

	e.metrics.Routes.Set(float64(e.table.RouteCount()))
	e.logAddedRoute(res)
	return nil
}

// registerInterest tells the bus about a route added to the table
func (e *Engine) registerInterest(res routingtablepkg.AddResult) error {
	switch {
	case res.Wildcard:
		if res.FirstForName {
			return e.bus.RegisterWildcard(res.Key.NamePattern, res.Key.AppPattern)
		}
	case res.Forced:
		// re-subscribing fetches the latest value, which the rearmed route sends once
		if err := e.bus.Unregister(res.Name); err != nil {
			return err
		}
		return e.bus.Register(res.Name)
	case res.FirstForName:
		return e.bus.Register(res.Name)
	}
	return nil
}

func (e *Engine) logAddedRoute(res routingtablepkg.AddResult) {
	fields := []zap.Field{zap.Stringer("route", res.Route)}
	if res.Wildcard {
		fields = append(fields, zap.Stringer("pattern", res.Key))
	}

	switch {
	case res.Forced:
		e.logger.Info("forcing one send of latest value", fields...)
	case res.Refreshed:
		e.logger.Info("refreshed route", fields...)
	case res.Wildcard:
		e.logger.Info("added wildcard route", fields...)
	default:
		e.logger.Info("added output route", fields...)
	}
}

// AddInputRoute starts a listener on in.Local
func (e *Engine) AddInputRoute(_ context.Context, in relaypkg.InputRoute) error {
	const op = "add input route"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return relaypkg.Wrap(relaypkg.KindConfig, op, ErrClosed)
	}
	if _, exists := e.listeners[in.Local]; exists {
		e.metrics.Errors.WithLabelValues(relaypkg.KindDuplicateListener.String()).Inc()
		return relaypkg.Errorf(relaypkg.KindDuplicateListener, op, "listener already listening on %s", in.Local)
	}

	listener, err := peerlink.NewUDPListener(in.Local, in.Multicast, in.Whitelist, e.queue, e.transport)
	if err != nil {
		return relaypkg.Wrap(relaypkg.KindConfig, op, err)
	}
	if err := listener.Run(e.listenCtx); err != nil {
		e.metrics.Errors.WithLabelValues(relaypkg.KindSocket.String()).Inc()
		return relaypkg.Wrap(relaypkg.KindSocket, op, err)
	}

	e.listeners[in.Local] = listener
	e.metrics.Listeners.Set(float64(len(e.listeners)))
	return nil
}

// OnLocalPublish forwards msg along its exact routes, or along routes
// materialized from wildcard rules when it has none
func (e *Engine) OnLocalPublish(msg *message.Message) {
	if msg == nil {
		return
	}
	if msg.Name == e.commandVar {
		e.HandleCommandMessage(msg)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}

	now := e.clock.Now()
	routes := e.table.ResolveExact(msg.Name)
	if len(routes) == 0 {
		for _, m := range e.table.ResolveWildcard(msg.Name, msg.Source) {
			e.logger.Info("dynamically creating outgoing route",
				zap.String("name", msg.Name),
				zap.String("dest_name", m.Route.DestName),
				zap.String("address", e.describeDest(m.Route)),
				zap.Stringer("pattern", m.Pattern))
			routes = append(routes, m.Route)
		}
		if len(routes) > 0 {
			e.metrics.Routes.Set(float64(e.table.RouteCount()))
		}
	}

	for _, route := range routes {
		if err := e.forward(msg, route, now); err != nil {
			e.metrics.Errors.WithLabelValues(relaypkg.KindOf(err).String()).Inc()
			e.logger.Warn("share failed", zap.Error(err))
		}
	}
}

// forward sends one message along one route. Called with mu held.
func (e *Engine) forward(msg *message.Message, route *routingtablepkg.Route, now time.Time) error {
	const op = "forward"

	if d := route.Demurral(now); d != routingtablepkg.DemurNone {
		e.metrics.Demurrals.WithLabelValues(d.String()).Inc()
		return nil
	}

	sender, ok := e.senders[route.Dest]
	if !ok {
		e.logger.Error("no output socket for route",
			zap.Stringer("route", route),
			zap.Strings("sockets", e.socketDump()))
		return relaypkg.Errorf(relaypkg.KindMissingSocket, op, "no output socket for %s", route.Dest)
	}

	out := msg.Rename(route.DestName)
	if size := e.codec.Size(out); size > peerlinkpkg.MaxPayloadSize {
		return relaypkg.Errorf(relaypkg.KindOversize, op,
			"%s is %d bytes, exceeding the %d kB payload limit", msg.Name, size, peerlinkpkg.MaxPayloadSize/1024)
	}

	payload, err := e.codec.Marshal(out)
	if err != nil {
		return relaypkg.Wrap(relaypkg.KindSend, op, err)
	}

	if err := sender.Send(payload); err != nil {
		kind := relaypkg.KindSend
		if errors.Is(err, peerlinkpkg.ErrPayloadTooLarge) {
			kind = relaypkg.KindOversize
		}
		return relaypkg.Wrap(kind, op, err)
	}

	route.RecordSend(now)
	e.metrics.Sent.WithLabelValues(route.Dest.String()).Inc()

	if e.config.Verbose {
		e.logger.Info("sending",
			zap.String("name", msg.Name),
			zap.String("as", route.DestName),
			zap.String("to", route.Dest.String()))
	} else {
		e.logger.Debug("sending",
			zap.String("name", msg.Name),
			zap.String("as", route.DestName),
			zap.String("to", route.Dest.String()))
	}
	return nil
}

// socketDump lists the open sockets for diagnostics. Called with mu held.
func (e *Engine) socketDump() []string {
	keys := slices.SortedFunc(maps.Keys(e.senders), endpoint.Compare)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// DrainInbound republishes queued inbound messages. Names this relay is
// registered for are owned locally and are not overwritten by remote copies.
func (e *Engine) DrainInbound() {
	msgs := e.queue.Drain()
	defer func() { e.metrics.QueueDepth.Set(float64(e.queue.Len())) }()

	for _, msg := range msgs {
		if e.bus.IsRegisteredFor(msg.Name) {
			e.metrics.Suppressed.Inc()
			e.logger.Debug("not republishing locally owned name", zap.String("name", msg.Name))
			continue
		}

		if err := e.bus.Publish(msg); err != nil {
			e.logger.Warn("republish failed", zap.String("name", msg.Name), zap.Error(err))
			continue
		}
		e.metrics.Republished.Inc()

		if e.config.Verbose {
			e.logger.Info("forwarding share", zap.String("name", msg.Name), zap.String("source", msg.Source))
		}
	}
}

// PublishStatusSummary publishes the output and input summaries, at most once per second
func (e *Engine) PublishStatusSummary() {
	e.mu.Lock()
	if e.closed || !e.status.AllowN(e.clock.Now(), 1) {
		e.mu.Unlock()
		return
	}
	outputs, inputs := e.outputSummary(), e.inputSummary()
	e.mu.Unlock()

	for _, status := range []*message.Message{
		message.NewString(relaypkg.OutputSummaryVar, outputs),
		message.NewString(relaypkg.InputSummaryVar, inputs),
	} {
		if err := e.bus.Publish(status); err != nil {
			e.logger.Warn("status publish failed", zap.String("name", status.Name), zap.Error(err))
		}
	}
}

// DoRegistrations registers every routed name and wildcard pair with the bus,
// as needed after a bus (re)connection
func (e *Engine) DoRegistrations() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.bus.Register(e.commandVar)
	for _, name := range e.table.Names() {
		err = multierr.Append(err, e.bus.Register(name))
	}
	for _, key := range e.table.WildcardKeys() {
		err = multierr.Append(err, e.bus.RegisterWildcard(key.NamePattern, key.AppPattern))
	}
	return err
}

// HandleCommand applies a "cmd=output,..." or "cmd=input,..." command.
// A command that fails to parse changes nothing.
func (e *Engine) HandleCommand(ctx context.Context, command string) error {
	e.logger.Info("handling command", zap.String("command", command))

	if err := shareconfig.ApplyCommand(ctx, e.parser, e, command); err != nil {
		e.metrics.Errors.WithLabelValues(relaypkg.KindOf(err).String()).Inc()
		return err
	}

	e.LogRoutes()
	return nil
}

// HandleCommandMessage applies a command received on the bus. Commands
// published before the engine started are ignored.
func (e *Engine) HandleCommandMessage(msg *message.Message) {
	if !msg.Time.IsZero() && msg.Time.Before(e.started) {
		e.logger.Debug("ignoring stale command", zap.Time("published", msg.Time))
		return
	}

	if err := e.HandleCommand(e.listenCtx, msg.ValueString()); err != nil {
		e.logger.Error("failed to parse dynamic request", zap.Error(err))
	}
}

// Run processes bus mail, inbound traffic and periodic work until ctx is done
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := e.clock.Ticker(e.config.Tick)
	defer ticker.Stop()

	e.logger.Info("relay running", zap.String("app", e.config.AppName), zap.Duration("tick", e.config.Tick))

	mail := e.bus.Mail()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("relay stopping")
			return nil

		case msg, ok := <-mail:
			if !ok {
				return errors.New("bus mailbox closed")
			}
			e.OnLocalPublish(msg)

		case <-e.queue.Ready():
			e.DrainInbound()

		case <-ticker.C:
			e.DrainInbound()
			e.PublishStatusSummary()
		}
	}
}

// Close stops every listener and closes every socket.
// It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	listeners := slices.Collect(maps.Values(e.listeners))
	senders := slices.Collect(maps.Values(e.senders))
	e.listeners = make(map[endpoint.Endpoint]peerlinkpkg.Listener)
	e.senders = make(map[endpoint.Endpoint]peerlinkpkg.Sender)
	e.mu.Unlock()

	e.cancelListen()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Stop())
	}
	for _, s := range senders {
		err = multierr.Append(err, s.Close())
	}

	e.metrics.Listeners.Set(0)
	e.logger.Info("relay closed")
	return err
}

// Verify that Engine implements the Relay interface at compile time
var _ relaypkg.Relay = (*Engine)(nil)
