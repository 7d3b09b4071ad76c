// Package endpoint provides the (host, port) value that identifies a UDP
// destination or listening address, and the multicast channel alias scheme
// ("multicast_N") layered on top of it.
//
// Endpoints are comparable values and can be used directly as map keys. Hosts are
// always dotted IPv4 strings; hostnames are turned into addresses by Resolve before
// an Endpoint is built.
package endpoint
