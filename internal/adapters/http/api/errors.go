package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDuplicate    = errors.New("duplicate request")
	ErrInternal     = errors.New("internal error")
)

// APIError records the handler operation that failed, the kind of failure
// and its cause.
type APIError struct {
	Op   string
	Kind error
	Err  error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an APIError with no underlying cause.
func NewKind(op string, kind error) error {
	return &APIError{Op: op, Kind: kind}
}

// WrapKind returns an APIError wrapping err.
func WrapKind(op string, kind, err error) error {
	return &APIError{Op: op, Kind: kind, Err: err}
}
