// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindInvalidTransition
	KindUpstream
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindUpstream:
		return "upstream"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// Error is the concrete error returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// UpstreamStatus and UpstreamBody are set for KindUpstream when the
	// provider answered with a non-2xx response.
	UpstreamStatus int
	UpstreamBody   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrInvalidCredentials is returned by login for both unknown users and bad passwords.
var ErrInvalidCredentials = &Error{Kind: KindAuth, Message: "invalid credentials"}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTransition(err error) error {
	return &Error{Kind: KindInvalidTransition, Message: "invalid status transition", Err: err}
}

func Persistence(err error, msg string) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// Upstream wraps a transport failure talking to a provider.
func Upstream(provider string, err error) error {
	return &Error{Kind: KindUpstream, Message: provider + " unavailable", Err: err}
}

// UpstreamResponse records a non-2xx provider answer.
func UpstreamResponse(provider string, status int, body []byte) error {
	return &Error{
		Kind:           KindUpstream,
		Message:        fmt.Sprintf("%s returned status %d", provider, status),
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// KindOf returns the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
