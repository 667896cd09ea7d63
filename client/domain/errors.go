package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindAuth covers failed login, register and identity checks.
	KindAuth
	// KindNetwork is a request that never produced an HTTP response.
	KindNetwork
	// KindRequest is a non-2xx answer from a non-auth endpoint.
	KindRequest
	// KindValidation errors are raised locally and never reach the server.
	KindValidation
	KindStream
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindRequest:
		return "request"
	case KindValidation:
		return "validation"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the client layers.
// Message is the text meant for the user; for REST failures it is the
// server response body verbatim.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message so wrapped copies
// compare equal to the package-level values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message && t.Op == "" && t.Status == 0
}

var (
	ErrEmptyMessage     = &Error{Kind: KindValidation, Message: "message is empty"}
	ErrEmptyRoomName    = &Error{Kind: KindValidation, Message: "room name is empty"}
	ErrInvalidRoomID    = &Error{Kind: KindValidation, Message: "invalid room id"}
	ErrNotAuthenticated = &Error{Kind: KindValidation, Message: "not authenticated"}
	ErrNotConnected     = &Error{Kind: KindValidation, Message: "not connected to a room"}
	ErrSuperseded       = &Error{Kind: KindValidation, Message: "superseded by a newer join"}
)

func NewNetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Message: err.Error(), Err: err}
}

func NewStreamError(op string, err error) *Error {
	return &Error{Kind: KindStream, Op: op, Message: err.Error(), Err: err}
}

func NewStatusError(kind ErrorKind, op string, status int, body string) *Error {
	msg := body
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
