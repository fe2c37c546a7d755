package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies a service-layer failure. The HTTP boundary maps every kind
// to a status code; services never pick status codes themselves.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAccessDenied
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(code string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Err: fmt.Errorf(format, args...)}
}

func NotFound(code string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Err: fmt.Errorf(format, args...)}
}

func AccessDenied(code string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAccessDenied, Code: code, Err: fmt.Errorf(format, args...)}
}

func Conflict(code string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Err: fmt.Errorf(format, args...)}
}

func Unavailable(code string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Err: err}
}

func Internal(code string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, Err: err}
}

// KindOf extracts the kind from any error in the chain; unknown errors count
// as internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf extracts the machine-readable code, if any.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
