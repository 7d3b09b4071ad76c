// Package relay defines the message relay that shares variables between
// communities over UDP.
//
// The relay sits between a local publish/subscribe bus and the network:
//   - Output routes forward local publications to remote endpoints, renamed,
//     rate limited and bounded in lifetime or count
//   - Wildcard routes are templates matched against every local publication
//     and promoted to concrete routes on first match
//   - Input routes listen on local endpoints and republish received messages
//     unless the name is already owned locally
//   - At most once per second, a status summary of both directions is
//     published on the bus
//
// Errors returned by a Relay are *Error values carrying a Kind so callers can
// tell configuration problems from runtime send failures:
//
//	if err := r.AddOutputRoute(ctx, out); err != nil {
//		switch relay.KindOf(err) {
//		case relay.KindResolution:
//			// unknown host
//		case relay.KindConfig:
//			// bad route
//		}
//	}
package relay
