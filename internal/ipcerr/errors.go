// Package ipcerr defines the typed error kinds that cross the IPC boundary
// between the kernel channel and the control-plane handlers/pipe engine.
//
// These are domain errors (bad NDR, unknown opnum, lookup miss) as opposed
// to infrastructure errors (channel closed, allocation failure); handlers
// translate a Kind into the outgoing response's status/return-code field.
package ipcerr

import "fmt"

// Kind categorizes an IPC-boundary error.
type Kind int

const (
	// BadMessage: the message payload size did not match the expected
	// fixed-layout struct for its type.
	BadMessage Kind = iota
	// BadData: NDR parse failure, or a value the protocol forbids (e.g. a
	// non-null container array pointer where one must be null).
	BadData
	// InvalidLevel: an info level outside {0, 1} was requested.
	InvalidLevel
	// NotImplemented: an unknown opnum or RPC method flag.
	NotImplemented
	// MoreData: the reply was truncated by max_size; more reads follow.
	MoreData
	// LookupMiss: a share, user, or session lookup found nothing.
	LookupMiss
	// ResourceExhausted: an allocation or pool-admission failure.
	ResourceExhausted
	// FatalStartup: lock acquisition or mandatory config load failed.
	FatalStartup
)

func (k Kind) String() string {
	switch k {
	case BadMessage:
		return "bad_message"
	case BadData:
		return "bad_data"
	case InvalidLevel:
		return "invalid_level"
	case NotImplemented:
		return "not_implemented"
	case MoreData:
		return "more_data"
	case LookupMiss:
		return "lookup_miss"
	case ResourceExhausted:
		return "resource_exhausted"
	case FatalStartup:
		return "fatal_startup"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying a Kind plus context.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String()
}

// New builds an *Error with Message formatted like fmt.Sprintf.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// KindOf extracts the Kind from err, defaulting to ResourceExhausted for
// errors that did not originate as an *Error (infrastructure failures
// should still produce a well-formed, if minimal, response).
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ResourceExhausted
}
