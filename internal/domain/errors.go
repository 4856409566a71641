package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUpstream          = errors.New("upstream failure")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timed out")
	ErrSelectionFull     = errors.New("selection full")
	ErrMovieNotAvailable = errors.New("movie not available for actor")
)

// ErrorKind classifies failures so the HTTP boundary can map them to a status.
type ErrorKind string

const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindNotFound      ErrorKind = "not_found"
	KindUpstream      ErrorKind = "upstream"
	KindConfiguration ErrorKind = "configuration"
	KindTimeout       ErrorKind = "timeout"
)

// Error carries a user-facing detail string alongside its kind. Upstream errors
// also keep the status code reported by the third party.
type Error struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Detail {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.sentinel()
}

// Is lets errors.Is match the sentinel of the error's kind even when a more
// specific cause is wrapped.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	case KindUpstream:
		return ErrUpstream
	case KindConfiguration:
		return ErrConfiguration
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// HTTPStatus returns the status code the error should be reported with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		if e.Status >= http.StatusBadRequest {
			return e.Status
		}
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func InvalidInput(detail string) *Error {
	return &Error{Kind: KindInvalidInput, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

func Upstream(status int, detail string, cause error) *Error {
	return &Error{Kind: KindUpstream, Status: status, Detail: detail, Err: cause}
}

func Configuration(detail string) *Error {
	return &Error{Kind: KindConfiguration, Detail: detail}
}

func Timeout(detail string) *Error {
	return &Error{Kind: KindTimeout, Detail: detail}
}

// AsError extracts a *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Detail returns the user-facing message of err, falling back to err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	if de, ok := AsError(err); ok && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}
