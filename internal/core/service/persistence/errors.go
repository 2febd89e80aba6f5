package persistence

import (
	"errors"
	"net/http"
)

// Kind classifies a persistence failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration is returned by constructors for missing or invalid options.
	KindConfiguration
	// KindClient is malformed caller input, or a write rejected as a caller fault.
	KindClient
	// KindNotFound means the requested id or storage path is absent.
	KindNotFound
	// KindServer is an unexpected storage failure.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindClient:
		return "client"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Status maps the kind to its transport status code. Only boundaries should need this.
func (k Kind) Status() int {
	switch k {
	case KindClient:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error returned by every adapter and by the facade.
type Error struct {
	Kind    Kind
	Message string
	Path    string // offending file or directory, if any
	ID      int    // offending record id, 0 when not applicable
	Cause   error
}

var (
	ErrConfiguration = &Error{Kind: KindConfiguration, Message: "invalid configuration"}
	ErrClient        = &Error{Kind: KindClient, Message: "bad request"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
	ErrServer        = &Error{Kind: KindServer, Message: "internal server error"}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return e.Message + ": " + e.Cause.Error()
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, ErrNotFound) matches every not-found error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Status is shorthand for e.Kind.Status().
func (e *Error) Status() int {
	return e.Kind.Status()
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindUnknown
}

// StatusOf converts any error into a status code; unclassified errors are 500.
func StatusOf(err error) int {
	return KindOf(err).Status()
}

// NewConfigurationError is returned by constructors for missing or invalid options.
func NewConfigurationError(msg string) error {
	return &Error{Kind: KindConfiguration, Message: msg}
}
