package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrReadBody         = errors.New("read request body")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrAPINotFound      = errors.New("api endpoint not found")
)

// KindError tags an error with the operation and a sentinel kind so callers
// can match with errors.Is on either.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind wraps err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind builds a KindError without a cause.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}
