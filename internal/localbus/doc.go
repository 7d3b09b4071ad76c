// Package localbus implements an in-memory publish/subscribe community.
//
// A Community stores the recent values of every variable and fans each
// publication out to the connected clients that registered for its name,
// either exactly or through a (name pattern, source pattern) wildcard.
// Registering for a name delivers its latest value straight away, and a
// client never receives what it published itself.
package localbus
