package relay

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	peerlinkpkg "github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
	relaypkg "github.com/rmacdonaldsmith/pshare-go/pkg/relay"
	routingtablepkg "github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

// WildcardMatch is shown as the destination of a wildcard rule that keeps
// the message name
const WildcardMatch = "<-wildcard-match->"

// Report returns a snapshot of routes and listeners
func (e *Engine) Report() relaypkg.Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	report := relaypkg.Report{
		AppName:   e.config.AppName,
		Outputs:   []relaypkg.RouteInfo{},
		Wildcards: []relaypkg.RouteInfo{},
		Inputs:    []relaypkg.ListenerInfo{},
		Generated: now,
	}

	for _, entry := range e.table.ExactRoutes() {
		for _, r := range entry.Routes {
			info := e.routeInfo(r)
			info.Status = r.Demurral(now).String()
			if info.Status == routingtablepkg.DemurNone.String() {
				info.Status = "active"
			}
			report.Outputs = append(report.Outputs, info)
		}
	}

	for _, entry := range e.table.WildcardRoutes() {
		for _, r := range entry.Routes {
			info := e.routeInfo(r)
			info.Source = entry.Key.NamePattern
			info.App = entry.Key.AppPattern
			info.DestName = wildcardDestName(r)
			info.Status = "template"
			report.Wildcards = append(report.Wildcards, info)
		}
	}

	for _, local := range e.listenerEndpoints() {
		l := e.listeners[local]
		report.Inputs = append(report.Inputs, relaypkg.ListenerInfo{
			Address:   local.String(),
			Alias:     e.aliasOf(local, l.Multicast()),
			Multicast: l.Multicast(),
			Whitelist: l.Whitelist(),
			State:     l.State().String(),
			Stats:     l.Stats(),
		})
	}

	return report
}

func (e *Engine) routeInfo(r *routingtablepkg.Route) relaypkg.RouteInfo {
	info := relaypkg.RouteInfo{
		Source:          r.SrcName,
		DestName:        r.DestName,
		Address:         r.Dest.String(),
		Alias:           e.aliasOf(r.Dest, r.Multicast),
		Multicast:       r.Multicast,
		Frequency:       r.Frequency,
		Duration:        -1,
		MaxShares:       r.MaxShares,
		SharesCompleted: r.SharesCompleted,
	}
	if r.Duration >= 0 && r.Duration != routingtablepkg.Forever {
		info.Duration = r.Duration.Seconds()
	}
	return info
}

// wildcardDestName renders a wildcard template's destination the way the
// route listing shows it
func wildcardDestName(r *routingtablepkg.Route) string {
	if r.DestName == "" {
		return WildcardMatch
	}
	return r.DestName + "<" + r.SrcName + ">"
}

// aliasOf returns "multicast_N" for endpoints on the alias group, or ""
func (e *Engine) aliasOf(ep endpoint.Endpoint, multicast bool) string {
	if !multicast || ep.Host != e.config.Aliases.Base.Host {
		return ""
	}
	alias, err := e.config.Aliases.AliasOf(ep)
	if err != nil {
		e.logger.Debug("endpoint has no alias", zap.Stringer("endpoint", ep), zap.Error(err))
		return ""
	}
	return alias
}

func (e *Engine) describeDest(r *routingtablepkg.Route) string {
	if alias := e.aliasOf(r.Dest, r.Multicast); alias != "" {
		return r.Dest.String() + ":" + alias
	}
	return r.Dest.String()
}

func (e *Engine) listenerEndpoints() []endpoint.Endpoint {
	return slices.SortedFunc(maps.Keys(e.listeners), endpoint.Compare)
}

// outputSummary renders exact routes as "X->Y:addr & Z:addr:multicast_N, W->...".
// Called with mu held.
func (e *Engine) outputSummary() string {
	var entries []string
	for _, entry := range e.table.ExactRoutes() {
		targets := make([]string, len(entry.Routes))
		for i, r := range entry.Routes {
			targets[i] = r.DestName + ":" + e.describeDest(r)
		}
		entries = append(entries, entry.Name+"->"+strings.Join(targets, " & "))
	}
	return strings.Join(entries, ", ")
}

// inputSummary renders listeners as "addr,addr:multicast_N". Called with mu held.
func (e *Engine) inputSummary() string {
	var entries []string
	for _, local := range e.listenerEndpoints() {
		s := local.String()
		if alias := e.aliasOf(local, e.listeners[local].Multicast()); alias != "" {
			s += ":" + alias
		}
		entries = append(entries, s)
	}
	return strings.Join(entries, ",")
}

// Health returns the relay's health summary
func (e *Engine) Health() relaypkg.HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := relaypkg.HealthStatus{
		Healthy:       !e.closed,
		Running:       e.running,
		OutputRoutes:  e.table.RouteCount(),
		WildcardRules: len(e.table.WildcardKeys()),
		Listeners:     len(e.listeners),
		Senders:       len(e.senders),
		QueueDepth:    e.queue.Len(),
	}

	for _, l := range e.listeners {
		if l.State() == peerlinkpkg.ListenerStopped {
			status.Healthy = false
			status.Message = "listener on " + l.Endpoint().String() + " stopped"
		}
	}
	if e.closed {
		status.Message = "relay closed"
	}
	return status
}

// LogRoutes logs the routing information, one entry per route and listener
func (e *Engine) LogRoutes() {
	report := e.Report()

	for _, r := range report.Outputs {
		e.logger.Info("standard route",
			zap.String("source", r.Source),
			zap.String("dest", r.DestName),
			zap.String("address", joinAlias(r.Address, r.Alias)),
			zap.String("rate", RateString(r.Frequency)),
			zap.String("status", r.Status))
	}
	for _, r := range report.Wildcards {
		e.logger.Info("wildcard route",
			zap.String("pattern", r.Source),
			zap.String("app", r.App),
			zap.String("dest", r.DestName),
			zap.String("address", joinAlias(r.Address, r.Alias)))
	}
	for _, l := range report.Inputs {
		e.logger.Info("listening",
			zap.String("address", joinAlias(l.Address, l.Alias)),
			zap.Strings("whitelist", l.Whitelist))
	}
}

// RateString renders a route frequency as "every notification" or "@ fHz"
func RateString(frequency float64) string {
	if frequency <= 0 {
		return "every notification"
	}
	return "@ " + strconv.FormatFloat(frequency, 'g', -1, 64) + "Hz"
}

func joinAlias(address, alias string) string {
	if alias == "" {
		return address
	}
	return address + ":" + alias
}
