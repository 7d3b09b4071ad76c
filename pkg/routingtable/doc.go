// Package routingtable provides the forwarding rules of a pShare relay.
//
// This package defines the core abstractions for the routing component:
//   - Route: one forwarding rule from a local message name to a remote endpoint,
//     with its admission limits (frequency cap, lifetime, share count) and
//     delivery history
//   - RoutingTable: the exact-name and wildcard rule sets, and resolution of
//     the routes that apply to a published message
//   - Match: the glob matcher shared by wildcard rules and listener white lists
//
// Example usage:
//
//	route := routingtable.NewRoute("NAV_X", "REMOTE_NAV_X", dest, now)
//	route.Frequency = 2 // at most twice per second
//
//	result, err := table.AddRoute("NAV_X", route)
//	if err != nil {
//		return err
//	}
//	if result.FirstForName {
//		bus.Register("NAV_X")
//	}
//
//	for _, r := range table.ResolveExact("NAV_X") {
//		if !r.IsActive(now) {
//			continue
//		}
//		send(r)
//		r.RecordSend(now)
//	}
//
// Wildcard Patterns:
//   - "*" matches any run of characters, including none
//   - "?" matches exactly one character
//   - a source name "NAME_PATTERN:APP_PATTERN" restricts the publishing application;
//     the application pattern defaults to "*"
//   - matching is case sensitive
package routingtable
