package relay

import (
	"errors"
	"fmt"
)

// Kind classifies relay errors
type Kind int

const (
	// KindUnknown is the kind of errors not produced by the relay
	KindUnknown Kind = iota
	// KindConfig is a malformed route, a missing field or an invalid address
	KindConfig
	// KindDuplicateListener is an input route on an endpoint already listened on
	KindDuplicateListener
	// KindResolution is a host name that could not be resolved to IPv4
	KindResolution
	// KindSocket is a failure to open or configure a socket
	KindSocket
	// KindSend is a failed datagram send
	KindSend
	// KindMissingSocket is a route whose endpoint has no open socket
	KindMissingSocket
	// KindOversize is a serialized message larger than the datagram limit
	KindOversize
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindDuplicateListener:
		return "duplicate_listener"
	case KindResolution:
		return "resolution"
	case KindSocket:
		return "socket"
	case KindSend:
		return "send"
	case KindMissingSocket:
		return "missing_socket"
	case KindOversize:
		return "oversize"
	default:
		return "unknown"
	}
}

// Error is a relay failure tagged with its Kind
type Error struct {
	Kind Kind
	// Op names the operation that failed, such as "add output route"
	Op  string
	Err error
}

// Errorf creates an *Error wrapping a formatted message
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind and op. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind and no wrapped error, so
// errors.Is(err, &relay.Error{Kind: relay.KindConfig}) tests the kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Op == "" && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
