package routingtable

import (
	"fmt"
	"math"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
)

const (
	// Unlimited disables the MaxShares limit
	Unlimited = -1

	// UnlimitedDuration disables the lifetime limit
	UnlimitedDuration time.Duration = -1

	// Forever is a lifetime that never runs out in practice
	Forever time.Duration = math.MaxInt64
)

// Demurral is the reason a route declines a send opportunity
type Demurral int

const (
	// DemurNone means the route accepts the send
	DemurNone Demurral = iota

	// DemurExpired means the route outlived its duration
	DemurExpired

	// DemurExhausted means the route completed its maximum number of shares
	DemurExhausted

	// DemurRateLimited means the previous send was less than one period ago
	DemurRateLimited
)

func (d Demurral) String() string {
	switch d {
	case DemurNone:
		return "none"
	case DemurExpired:
		return "expired"
	case DemurExhausted:
		return "exhausted"
	case DemurRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Route is one forwarding rule.
// Routes are owned by a RoutingTable and mutated only through it or by the relay
// that resolved them.
type Route struct {
	// SrcName is the local name the rule applies to, or the pattern of a wildcard rule
	SrcName string

	// DestName is the name the message carries on the wire
	DestName string

	// Dest is the remote endpoint the message is sent to
	Dest endpoint.Endpoint

	// Multicast marks Dest as a multicast group
	Multicast bool

	// Frequency caps sends per second. Zero forwards every notification.
	Frequency float64

	// Duration bounds the lifetime of the route. Negative means no limit.
	Duration time.Duration

	// MaxShares bounds the number of sends. Negative means no limit.
	MaxShares int

	// Delivery history
	Created         time.Time
	LastSent        time.Time
	SharesCompleted int
}

// NewRoute creates an unconstrained route created at now
func NewRoute(srcName, destName string, dest endpoint.Endpoint, now time.Time) Route {
	return Route{
		SrcName:   srcName,
		DestName:  destName,
		Dest:      dest,
		Duration:  UnlimitedDuration,
		MaxShares: Unlimited,
		Created:   now,
	}
}

// Demurral returns why the route would decline a send at now, or DemurNone.
// It has no side effects.
func (r *Route) Demurral(now time.Time) Demurral {
	if r.Duration >= 0 && now.Sub(r.Created) > r.Duration {
		return DemurExpired
	}
	if r.MaxShares >= 0 && r.SharesCompleted >= r.MaxShares {
		return DemurExhausted
	}
	if r.Frequency > 0 && !r.LastSent.IsZero() && now.Sub(r.LastSent).Seconds() < 1/r.Frequency {
		return DemurRateLimited
	}
	return DemurNone
}

// IsActive reports whether the route accepts a send at now
func (r *Route) IsActive(now time.Time) bool {
	return r.Demurral(now) == DemurNone
}

// RecordSend notes a successful send at now
func (r *Route) RecordSend(now time.Time) {
	r.LastSent = now
	r.SharesCompleted++
}

// Equal reports whether two routes describe the same rule: same endpoint, names
// and delivery mode. Limits and history are not compared.
func (r *Route) Equal(o *Route) bool {
	return r.Dest == o.Dest &&
		r.DestName == o.DestName &&
		r.SrcName == o.SrcName &&
		r.Multicast == o.Multicast
}

// Refresh overwrites the limits of r with those of u and restarts its lifetime.
// The number of completed shares is kept.
func (r *Route) Refresh(u *Route, now time.Time) {
	r.Frequency = u.Frequency
	r.Duration = u.Duration
	r.MaxShares = u.MaxShares
	r.Created = now
}

// ForceOnce rearms r so that exactly one more send is admitted
func (r *Route) ForceOnce(now time.Time) {
	r.MaxShares = 1
	r.SharesCompleted = 0
	r.Duration = Forever
	r.LastSent = time.Time{}
	r.Created = now
}

// Clone returns a copy of r
func (r *Route) Clone() *Route {
	c := *r
	return &c
}

// String describes the route as "src->dest@address"
func (r *Route) String() string {
	mode := "udp"
	if r.Multicast {
		mode = "multicast"
	}
	return fmt.Sprintf("%s->%s@%s[%s]", r.SrcName, r.DestName, r.Dest, mode)
}
