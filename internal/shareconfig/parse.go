package shareconfig

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
	"github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

// Resolver turns a "host:port" string into an endpoint
type Resolver func(ctx context.Context, hostport string) (endpoint.Endpoint, error)

// Parser reads route descriptions in long form
//
//	src_name=X,dest_name=Y,route=host:port&multicast_3,frequency=2,duration=10,max_shares=5
//	route=multicast_8&0.0.0.0:9000,white_list=NAV_*&GPS_*
//
// and in output shorthand
//
//	X->Y:host:port@2 & Z:multicast_8
//
// A line is parsed completely before anything is returned, so a bad target
// anywhere in the line rejects the whole line.
type Parser struct {
	Aliases endpoint.Aliases
	Resolve Resolver
}

// NewParser creates a parser using aliases and DNS resolution
func NewParser(aliases endpoint.Aliases) *Parser {
	return &Parser{Aliases: aliases, Resolve: endpoint.Resolve}
}

// IsLongForm reports whether a configuration line uses key=value syntax
func IsLongForm(line string) bool {
	return strings.Contains(line, "route") || strings.Contains(line, "Route")
}

// ParseOutput parses an output line in either syntax
func (p *Parser) ParseOutput(ctx context.Context, line string) ([]relay.OutputRoute, error) {
	if IsLongForm(line) {
		return p.ParseLongOutput(ctx, line)
	}
	return p.ParseShorthandOutput(ctx, line)
}

// ParseInput parses an input line in either syntax. The shorthand is a bare
// "&" separated list of targets.
func (p *Parser) ParseInput(ctx context.Context, line string) ([]relay.InputRoute, error) {
	if IsLongForm(line) {
		return p.ParseLongInput(ctx, line)
	}
	return p.ParseLongInput(ctx, "route="+line)
}

// ParseLongOutput parses "src_name=..,route=..[,dest_name=..][,frequency=..][,duration=..][,max_shares=..]"
func (p *Parser) ParseLongOutput(ctx context.Context, line string) ([]relay.OutputRoute, error) {
	const op = "parse output"

	fields, err := parseFields(line)
	if err != nil {
		return nil, relay.Wrap(relay.KindConfig, op, err)
	}

	srcName := fields["src_name"]
	if srcName == "" {
		return nil, relay.Errorf(relay.KindConfig, op, "%q: src_name is a required field", line)
	}
	destName := srcName
	if v, ok := fields["dest_name"]; ok && v != "" {
		destName = v
	}

	frequency, err := floatField(fields, "frequency", 0)
	if err != nil {
		return nil, relay.Wrap(relay.KindConfig, op, err)
	}
	if frequency < 0 {
		return nil, relay.Errorf(relay.KindConfig, op, "frequency cannot be negative: %v", frequency)
	}
	seconds, err := floatField(fields, "duration", -1)
	if err != nil {
		return nil, relay.Wrap(relay.KindConfig, op, err)
	}
	maxShares, err := intField(fields, "max_shares", routingtable.Unlimited)
	if err != nil {
		return nil, relay.Wrap(relay.KindConfig, op, err)
	}

	targets, err := p.targets(ctx, op, fields)
	if err != nil {
		return nil, err
	}

	routes := make([]relay.OutputRoute, 0, len(targets))
	for _, t := range targets {
		routes = append(routes, relay.OutputRoute{
			SrcName:   srcName,
			DestName:  destName,
			Dest:      t.ep,
			Multicast: t.multicast,
			Frequency: frequency,
			Duration:  Seconds(seconds),
			MaxShares: maxShares,
		})
	}
	return routes, nil
}

// ParseLongInput parses "route=..[,white_list=A&B]"
func (p *Parser) ParseLongInput(ctx context.Context, line string) ([]relay.InputRoute, error) {
	const op = "parse input"

	fields, err := parseFields(line)
	if err != nil {
		return nil, relay.Wrap(relay.KindConfig, op, err)
	}

	var whitelist []string
	if v := fields["white_list"]; v != "" {
		for _, pattern := range strings.Split(v, "&") {
			if pattern != "" {
				whitelist = append(whitelist, pattern)
			}
		}
	}

	targets, err := p.targets(ctx, op, fields)
	if err != nil {
		return nil, err
	}

	routes := make([]relay.InputRoute, 0, len(targets))
	for _, t := range targets {
		routes = append(routes, relay.InputRoute{
			Local:     t.ep,
			Multicast: t.multicast,
			Whitelist: whitelist,
		})
	}
	return routes, nil
}

// ParseShorthandOutput parses "SRC->[DEST:]host:port[@freq] & [DEST:]multicast_N[@freq]".
// Each clause is rewritten to long form and parsed by ParseLongOutput.
func (p *Parser) ParseShorthandOutput(ctx context.Context, line string) ([]relay.OutputRoute, error) {
	const op = "parse shorthand"

	srcName, rest, found := strings.Cut(line, "->")
	srcName = strings.TrimSpace(srcName)
	if !found || srcName == "" {
		return nil, relay.Errorf(relay.KindConfig, op, "%q: expected SRC->ROUTE", line)
	}

	var routes []relay.OutputRoute
	for _, clause := range strings.Split(rest, "&") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		long, err := shorthandClause(srcName, clause)
		if err != nil {
			return nil, relay.Errorf(relay.KindConfig, op, "%q: %v", line, err)
		}

		clauseRoutes, err := p.ParseLongOutput(ctx, long)
		if err != nil {
			return nil, err
		}
		routes = append(routes, clauseRoutes...)
	}

	if len(routes) == 0 {
		return nil, relay.Errorf(relay.KindConfig, op, "%q: no routes", line)
	}
	return routes, nil
}

// shorthandClause converts one "[DEST:]target[@freq]" clause to long form
func shorthandClause(srcName, clause string) (string, error) {
	description, frequency, _ := strings.Cut(clause, "@")
	description = strings.TrimSpace(description)
	frequency = strings.TrimSpace(frequency)
	if frequency == "" {
		frequency = "0"
	}

	if !strings.Contains(description, ":") && !endpoint.IsAlias(description) {
		return "", errors.New("not enough parts in route")
	}

	parts := strings.Split(description, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	destName := srcName
	var target string
	if endpoint.IsAlias(parts[len(parts)-1]) {
		switch len(parts) {
		case 1:
			target = parts[0]
		case 2:
			destName, target = parts[0], parts[1]
		default:
			return "", errors.New("too many parts to the route")
		}
	} else {
		switch len(parts) {
		case 2:
			target = parts[0] + ":" + parts[1]
		case 3:
			destName, target = parts[0], parts[1]+":"+parts[2]
		default:
			return "", errors.New("too many parts to the route")
		}
	}
	if destName == "" {
		destName = srcName
	}

	return "src_name=" + srcName +
		",dest_name=" + destName +
		",route=" + target +
		",frequency=" + frequency, nil
}

type target struct {
	ep        endpoint.Endpoint
	multicast bool
}

// targets resolves every "&" separated entry of the route field
func (p *Parser) targets(ctx context.Context, op string, fields map[string]string) ([]target, error) {
	routes := fields["route"]
	if routes == "" {
		return nil, relay.Errorf(relay.KindConfig, op, "route is a required field")
	}

	var out []target
	for _, r := range strings.Split(routes, "&") {
		if r == "" {
			continue
		}

		channel, isAlias, err := endpoint.ParseAlias(r)
		if err != nil {
			return nil, relay.Wrap(relay.KindConfig, op, err)
		}
		if isAlias {
			ep, err := p.Aliases.Channel(channel)
			if err != nil {
				return nil, relay.Wrap(relay.KindConfig, op, err)
			}
			out = append(out, target{ep: ep, multicast: true})
			continue
		}

		ep, err := p.resolve(ctx, r)
		if err != nil {
			kind := relay.KindConfig
			if errors.Is(err, endpoint.ErrUnresolvable) {
				kind = relay.KindResolution
			}
			return nil, relay.Wrap(kind, op, err)
		}
		out = append(out, target{ep: ep, multicast: ep.IsMulticast()})
	}

	if len(out) == 0 {
		return nil, relay.Errorf(relay.KindConfig, op, "route is a required field")
	}
	return out, nil
}

func (p *Parser) resolve(ctx context.Context, hostport string) (endpoint.Endpoint, error) {
	if p.Resolve == nil {
		return endpoint.Resolve(ctx, hostport)
	}
	return p.Resolve(ctx, hostport)
}

// parseFields reads comma separated key=value pairs. Spaces are removed
// everywhere and keys are case insensitive.
func parseFields(line string) (map[string]string, error) {
	line = strings.ReplaceAll(line, " ", "")
	line = strings.ReplaceAll(line, "\t", "")

	fields := make(map[string]string)
	for _, pair := range strings.Split(line, ",") {
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed field %q: expected key=value", pair)
		}
		fields[strings.ToLower(key)] = value
	}
	return fields, nil
}

func floatField(fields map[string]string, key string, def float64) (float64, error) {
	v, ok := fields[key]
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("field %s: %q is not a number", key, v)
	}
	return f, nil
}

func intField(fields map[string]string, key string, def int) (int, error) {
	v, ok := fields[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %q is not an integer", key, v)
	}
	return n, nil
}

// Seconds converts a duration in seconds to a time.Duration. Negative values
// mean unlimited and values too large to represent saturate to Forever.
func Seconds(s float64) time.Duration {
	switch {
	case s < 0:
		return routingtable.UnlimitedDuration
	case s*float64(time.Second) >= float64(math.MaxInt64):
		return routingtable.Forever
	default:
		return time.Duration(s * float64(time.Second))
	}
}
