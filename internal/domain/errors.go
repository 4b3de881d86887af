package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds travel across the calling boundary as
// status codes; the message travels through the last-error slot.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindTransport
	KindTimeout
	KindNotFound
	KindAlreadyShutdown
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindTransport:
		return "transport_error"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindAlreadyShutdown:
		return "already_shutdown"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by every engine operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrTransport       = &Error{Kind: KindTransport}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyShutdown = &Error{Kind: KindAlreadyShutdown}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, op, msg string, err error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// KindOf extracts the kind from err. Errors that did not come from this
// package are reported as internal; a nil error has kind zero.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
