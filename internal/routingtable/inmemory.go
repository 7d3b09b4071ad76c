package routingtable

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rmacdonaldsmith/pshare-go/pkg/routingtable"
)

var (
	// ErrEmptyName is returned when a route has no source name
	ErrEmptyName = errors.New("source name cannot be empty")
	// ErrEmptyDestName is returned when an exact route has no destination name
	ErrEmptyDestName = errors.New("destination name cannot be empty")
	// ErrEmptyPattern is returned when a wildcard rule has no variable pattern
	ErrEmptyPattern = errors.New("wildcard pattern cannot be empty")
)

// DefaultMissCacheSize is the number of (name, source) pairs remembered as
// matching no wildcard rule
const DefaultMissCacheSize = 4096

// InMemoryRoutingTable implements routingtable.RoutingTable with maps.
// Exact routes are keyed by source name; wildcard templates are keyed by their
// (name pattern, application pattern) pair and visited in key order.
// It is not safe for concurrent use.
type InMemoryRoutingTable struct {
	exact      map[string][]*routingtable.Route
	registered map[string]struct{}

	wildcard map[routingtable.WildcardKey][]*routingtable.Route
	keys     []routingtable.WildcardKey

	// misses remembers names that matched no wildcard rule so that unrouted
	// traffic is not globbed on every notification
	misses *lru.Cache[string, struct{}]
}

// NewInMemoryRoutingTable creates an empty routing table
func NewInMemoryRoutingTable() *InMemoryRoutingTable {
	return NewInMemoryRoutingTableWithCacheSize(DefaultMissCacheSize)
}

// NewInMemoryRoutingTableWithCacheSize creates an empty routing table whose miss
// cache holds size entries
func NewInMemoryRoutingTableWithCacheSize(size int) *InMemoryRoutingTable {
	if size <= 0 {
		size = DefaultMissCacheSize
	}
	misses, err := lru.New[string, struct{}](size)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}

	return &InMemoryRoutingTable{
		exact:      make(map[string][]*routingtable.Route),
		registered: make(map[string]struct{}),
		wildcard:   make(map[routingtable.WildcardKey][]*routingtable.Route),
		misses:     misses,
	}
}

// AddRoute registers route for srcName
func (t *InMemoryRoutingTable) AddRoute(srcName string, route routingtable.Route, now time.Time) (routingtable.AddResult, error) {
	name := strings.TrimSpace(srcName)
	if name == "" {
		return routingtable.AddResult{}, ErrEmptyName
	}
	if routingtable.IsWildcard(name) {
		return t.AddWildcardRoute(name, route, now)
	}

	route.SrcName = name
	route.DestName = strings.TrimSpace(route.DestName)
	if route.DestName == "" {
		return routingtable.AddResult{}, ErrEmptyDestName
	}

	result := routingtable.AddResult{Name: name}
	if existing := find(t.exact[name], &route); existing != nil {
		existing.Refresh(&route, now)
		if route.Duration == 0 {
			existing.ForceOnce(now)
			result.Forced = true
		}
		result.Refreshed = true
		result.Route = existing
		return result, nil
	}

	stored := route.Clone()
	if stored.Created.IsZero() {
		stored.Created = now
	}
	t.exact[name] = append(t.exact[name], stored)

	if _, seen := t.registered[name]; !seen {
		t.registered[name] = struct{}{}
		result.FirstForName = true
	}
	result.Route = stored
	return result, nil
}

// AddWildcardRoute registers route as a template for srcPattern
func (t *InMemoryRoutingTable) AddWildcardRoute(srcPattern string, route routingtable.Route, now time.Time) (routingtable.AddResult, error) {
	key := routingtable.SplitPattern(strings.TrimSpace(srcPattern))
	if key.NamePattern == "" {
		return routingtable.AddResult{}, ErrEmptyPattern
	}

	route.SrcName = key.String()
	route.DestName = strings.TrimSpace(route.DestName)
	if routingtable.HasGlob(route.DestName) {
		// a patterned destination means "keep the source name"
		route.DestName = ""
	}

	result := routingtable.AddResult{Wildcard: true, Key: key}
	if existing := find(t.wildcard[key], &route); existing != nil {
		existing.Refresh(&route, now)
		result.Refreshed = true
		result.Route = existing
		return result, nil
	}

	stored := route.Clone()
	if stored.Created.IsZero() {
		stored.Created = now
	}

	bucket, exists := t.wildcard[key]
	if !exists {
		i, _ := slices.BinarySearchFunc(t.keys, key, compareKeys)
		t.keys = slices.Insert(t.keys, i, key)
	}
	t.wildcard[key] = append(bucket, stored)
	t.misses.Purge()

	result.FirstForName = !exists
	result.Route = stored
	return result, nil
}

// RemoveRoute deletes route from its exact bucket or wildcard template list
func (t *InMemoryRoutingTable) RemoveRoute(route *routingtable.Route) bool {
	if route == nil {
		return false
	}

	if routingtable.IsWildcard(route.SrcName) {
		key := routingtable.SplitPattern(route.SrcName)
		bucket, ok := t.wildcard[key]
		if !ok {
			return false
		}
		i := slices.Index(bucket, route)
		if i < 0 {
			return false
		}
		bucket = slices.Delete(bucket, i, i+1)
		if len(bucket) == 0 {
			delete(t.wildcard, key)
			if j, found := slices.BinarySearchFunc(t.keys, key, compareKeys); found {
				t.keys = slices.Delete(t.keys, j, j+1)
			}
		} else {
			t.wildcard[key] = bucket
		}
		t.misses.Purge()
		return true
	}

	bucket := t.exact[route.SrcName]
	i := slices.Index(bucket, route)
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(t.exact, route.SrcName)
		delete(t.registered, route.SrcName)
	} else {
		t.exact[route.SrcName] = bucket
	}
	return true
}

// ResolveExact returns the routes registered for name
func (t *InMemoryRoutingTable) ResolveExact(name string) []*routingtable.Route {
	return t.exact[name]
}

// ResolveWildcard materializes and promotes routes for name published by source
func (t *InMemoryRoutingTable) ResolveWildcard(name, source string) []routingtable.Materialized {
	if len(t.keys) == 0 {
		return nil
	}

	cacheKey := name + "\x00" + source
	if t.misses.Contains(cacheKey) {
		return nil
	}

	var out []routingtable.Materialized
	seen := make(map[*routingtable.Route]struct{})
	for _, key := range t.keys {
		if !routingtable.Match(key.NamePattern, name) || !routingtable.Match(key.AppPattern, source) {
			continue
		}

		for _, template := range t.wildcard[key] {
			destName, ok := materializedDestName(key.NamePattern, template.DestName, name)
			if !ok {
				continue
			}
			candidate := template.Clone()
			candidate.SrcName = name
			candidate.DestName = destName

			// overlapping rules may materialize the same route
			route := t.promote(name, candidate)
			if _, dup := seen[route]; dup {
				continue
			}
			seen[route] = struct{}{}

			out = append(out, routingtable.Materialized{
				Route:   route,
				Pattern: key,
			})
		}
	}

	if len(out) == 0 {
		t.misses.Add(cacheKey, struct{}{})
	}
	return out
}

// promote stores candidate as an exact route for name unless an equal route
// is already there
func (t *InMemoryRoutingTable) promote(name string, candidate *routingtable.Route) *routingtable.Route {
	if existing := find(t.exact[name], candidate); existing != nil {
		return existing
	}
	t.exact[name] = append(t.exact[name], candidate)
	return candidate
}

// materializedDestName computes the wire name of a message promoted from a
// wildcard rule. With a single-star pattern and the "^" template the name is
// the part matched by the star (A_X under *_X becomes A); otherwise the
// template is used as a prefix. ok is false when the star captures nothing,
// since an empty wire name cannot be shared.
func materializedDestName(pattern, template, name string) (destName string, ok bool) {
	if template == "^" {
		if captured, single := routingtable.StarCapture(pattern, name); single {
			return captured, captured != ""
		}
	}
	return template + name, true
}

// ExactRoutes returns all exact routes sorted by name
func (t *InMemoryRoutingTable) ExactRoutes() []routingtable.ExactEntry {
	entries := make([]routingtable.ExactEntry, 0, len(t.exact))
	for _, name := range t.Names() {
		entries = append(entries, routingtable.ExactEntry{Name: name, Routes: t.exact[name]})
	}
	return entries
}

// WildcardRoutes returns all wildcard rules sorted by key
func (t *InMemoryRoutingTable) WildcardRoutes() []routingtable.WildcardEntry {
	entries := make([]routingtable.WildcardEntry, 0, len(t.keys))
	for _, key := range t.keys {
		entries = append(entries, routingtable.WildcardEntry{Key: key, Routes: t.wildcard[key]})
	}
	return entries
}

// Names returns the exact source names, sorted
func (t *InMemoryRoutingTable) Names() []string {
	return slices.Sorted(maps.Keys(t.exact))
}

// WildcardKeys returns the wildcard keys, sorted
func (t *InMemoryRoutingTable) WildcardKeys() []routingtable.WildcardKey {
	return slices.Clone(t.keys)
}

// RouteCount returns the number of exact routes
func (t *InMemoryRoutingTable) RouteCount() int {
	n := 0
	for _, routes := range t.exact {
		n += len(routes)
	}
	return n
}

func find(routes []*routingtable.Route, route *routingtable.Route) *routingtable.Route {
	for _, r := range routes {
		if r.Equal(route) {
			return r
		}
	}
	return nil
}

func compareKeys(a, b routingtable.WildcardKey) int {
	return cmp.Or(
		strings.Compare(a.NamePattern, b.NamePattern),
		strings.Compare(a.AppPattern, b.AppPattern),
	)
}

// Verify that InMemoryRoutingTable implements the RoutingTable interface at compile time
var _ routingtable.RoutingTable = (*InMemoryRoutingTable)(nil)
