package routingtable

import "time"

// WildcardKey identifies a wildcard rule set: a variable name pattern and a
// source application pattern
type WildcardKey struct {
	NamePattern string
	AppPattern  string
}

// String renders the key as "NAME_PATTERN:APP_PATTERN"
func (k WildcardKey) String() string {
	return k.NamePattern + ":" + k.AppPattern
}

// AddResult reports what a registration did to the table
type AddResult struct {
	// Wildcard is set when the route was stored as a wildcard rule under Key
	Wildcard bool
	Key      WildcardKey

	// Name is the trimmed source name the route was stored under (exact rules)
	Name string

	// FirstForName is set when this is the first route for the name (or pattern
	// pair); the caller registers interest with the local bus exactly then
	FirstForName bool

	// Refreshed is set when an equal route existed and was updated in place
	Refreshed bool

	// Forced is set when a refresh used a zero duration; the route was rearmed to
	// send the latest value once and the caller re-subscribes to obtain that value
	Forced bool

	// Route is the stored route
	Route *Route
}

// Materialized is a concrete route derived from a wildcard rule
type Materialized struct {
	Route   *Route
	Pattern WildcardKey
}

// ExactEntry lists the routes of one source name
type ExactEntry struct {
	Name   string
	Routes []*Route
}

// WildcardEntry lists the route templates of one wildcard key
type WildcardEntry struct {
	Key    WildcardKey
	Routes []*Route
}

// RoutingTable owns exact-name and wildcard forwarding rules.
//
// Implementations are not required to be safe for concurrent use; the relay
// serializes access.
type RoutingTable interface {
	// AddRoute registers route for srcName. Names containing "*", "?" or ":" are
	// handed to AddWildcardRoute. Registering a route equal to an existing one
	// refreshes the existing route instead of adding a second.
	AddRoute(srcName string, route Route, now time.Time) (AddResult, error)

	// AddWildcardRoute registers route as a template for "NAME_PATTERN[:APP_PATTERN]"
	AddWildcardRoute(srcPattern string, route Route, now time.Time) (AddResult, error)

	// RemoveRoute deletes a stored route returned by AddRoute or AddWildcardRoute.
	// A name or key left without routes is forgotten, so adding to it again
	// reports FirstForName.
	RemoveRoute(route *Route) bool

	// ResolveExact returns the routes registered for name, in insertion order
	ResolveExact(name string) []*Route

	// ResolveWildcard materializes concrete routes for a message name published by
	// source from every matching wildcard rule. Materialized routes are promoted to
	// exact routes for name, so resolving the same pair again returns the same routes.
	ResolveWildcard(name, source string) []Materialized

	// ExactRoutes returns all exact routes, sorted by name
	ExactRoutes() []ExactEntry

	// WildcardRoutes returns all wildcard rules, sorted by key
	WildcardRoutes() []WildcardEntry

	// Names returns the exact source names, sorted
	Names() []string

	// WildcardKeys returns the wildcard rule keys, sorted
	WildcardKeys() []WildcardKey
}
