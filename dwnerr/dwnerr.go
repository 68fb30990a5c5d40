// Package dwnerr classifies component errors into a small fixed set of
// kinds, so the pipeline dispatcher can shape a reply status without every
// package re-deriving HTTP-like status knowledge.
package dwnerr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error categories a reply status is shaped from.
type Kind int

const (
	KindInvalid Kind = iota
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUnimplemented
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindUnimplemented:
		return "Unimplemented"
	default:
		return "Internal"
	}
}

// CodeFor maps a Kind to its HTTP-like reply status code.
func CodeFor(k Kind) int {
	switch k {
	case KindInvalid:
		return 400
	case KindUnauthenticated, KindUnauthorized:
		return 401
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnimplemented:
		return 501
	default:
		return 500
	}
}

// Error is the typed error every component returns; Code is a stable,
// human-readable machine tag (e.g. "GrantExpired", "DescriptorCidMismatch")
// suitable for logging and for the reply's Status.Detail.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as a classified Error with the given kind and machine code.
func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// Wrapf builds a classified Error from a format string, in the style of
// fmt.Errorf but with a Kind/Code attached.
func Wrapf(kind Kind, code string, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}

// As reports whether err (or something it wraps) is a *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the HTTP-like status code for err.
func CodeOf(err error) int {
	return CodeFor(KindOf(err))
}

// DetailOf returns a human-readable detail string for err, suitable for a
// reply's Status.Detail. It never includes secret material.
func DetailOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
