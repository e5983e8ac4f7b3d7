// Package apperr defines the closed set of error kinds returned by the core
// services. Each error carries its kind plus the resource or action it refers
// to; translating a kind into an HTTP status is left to the handler layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error variants known to the application.
type Kind string

const (
	KindDuplicateProfile      Kind = "DUPLICATE_PROFILE"
	KindProfileNotFound       Kind = "PROFILE_NOT_FOUND"
	KindExpiredToken          Kind = "EXPIRED_TOKEN"
	KindInvalidToken          Kind = "INVALID_TOKEN"
	KindNotAuthenticated      Kind = "NOT_AUTHENTICATED"
	KindUpstreamUnavailable   Kind = "UPSTREAM_UNAVAILABLE"
	KindUpstreamProtocol      Kind = "UPSTREAM_PROTOCOL_ERROR"
	KindFavoriteAlreadyExists Kind = "FAVORITE_ALREADY_EXISTS"
	KindFavoriteNotFound      Kind = "FAVORITE_NOT_FOUND"
	KindMovieNotFound         Kind = "MOVIE_NOT_FOUND"
	KindValidation            Kind = "VALIDATION"
)

// Error is the tagged error value. Resource is set for "not found" style
// kinds, Action for kinds that reject an operation. Cause is optional.
type Error struct {
	Kind     Kind
	Resource string
	Action   string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	switch {
	case e.Resource != "":
		msg += " (" + e.Resource + ")"
	case e.Action != "":
		msg += " (" + e.Action + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, apperr.ErrFavoriteNotFound) works for any instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is matching.
var (
	ErrDuplicateProfile      = &Error{Kind: KindDuplicateProfile, Action: "Create profile"}
	ErrProfileNotFound       = &Error{Kind: KindProfileNotFound, Resource: "Profile"}
	ErrExpiredToken          = &Error{Kind: KindExpiredToken}
	ErrInvalidToken          = &Error{Kind: KindInvalidToken, Action: "Authorization"}
	ErrNotAuthenticated      = &Error{Kind: KindNotAuthenticated}
	ErrUpstreamUnavailable   = &Error{Kind: KindUpstreamUnavailable}
	ErrUpstreamProtocol      = &Error{Kind: KindUpstreamProtocol}
	ErrFavoriteAlreadyExists = &Error{Kind: KindFavoriteAlreadyExists, Action: "Add favorite"}
	ErrFavoriteNotFound      = &Error{Kind: KindFavoriteNotFound, Resource: "Favorite"}
	ErrMovieNotFound         = &Error{Kind: KindMovieNotFound, Resource: "Movie"}
	ErrValidation            = &Error{Kind: KindValidation}
)

// New returns a copy of the sentinel for kind with the given cause attached.
func New(sentinel *Error, cause error) *Error {
	e := *sentinel
	e.Cause = cause
	return &e
}

// Newf is like New but attaches a formatted message instead of a cause.
func Newf(sentinel *Error, format string, args ...any) *Error {
	e := *sentinel
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

// KindOf extracts the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is a convenience around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
