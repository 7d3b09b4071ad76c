// Package peerlink provides the UDP transport abstractions used to share
// messages between communities.
//
// This package defines:
//   - Sender: an outbound socket bound to one destination endpoint
//   - Listener: an inbound socket with a whitelist, feeding a Queue
//   - Queue: the multiple-producer single-consumer FIFO drained by the relay
//
// Datagrams carry one serialized message record each and never exceed
// MaxPayloadSize. Multicast senders use a TTL of one with loopback enabled so
// that communities on the same host receive each other's traffic.
//
// Example usage:
//
//	sender, err := peerlink.OpenSender(ctx, dest, false, cfg)
//	if err != nil {
//		return err
//	}
//	defer sender.Close()
//
//	payload, err := codec.Marshal(msg.Rename("NAV_X"))
//	if err != nil {
//		return err
//	}
//	return sender.Send(payload)
package peerlink
