package glpi

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the GLPI client.
type ErrorKind string

// Error kinds, in rough order of locality.
const (
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindAuthFailure     ErrorKind = "auth_failure"
	KindTimeout         ErrorKind = "timeout"
	KindConnection      ErrorKind = "connection_error"
	KindHTTP            ErrorKind = "http_error"
	KindDecode          ErrorKind = "decode_error"
)

// APIError is the typed error returned by the GLPI client and its callers.
type APIError struct {
	Kind    ErrorKind
	Status  int // HTTP status for KindHTTP, zero otherwise
	Message string
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("glpi: %s (HTTP %d): %v", e.Message, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("glpi: %s: %v", e.Message, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("glpi: %s (HTTP %d)", e.Message, e.Status)
	default:
		return "glpi: " + e.Message
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// NewError builds an APIError without a cause.
func NewError(kind ErrorKind, message string) *APIError {
	return &APIError{Kind: kind, Message: message}
}

// WrapError builds an APIError around a cause.
func WrapError(kind ErrorKind, message string, err error) *APIError {
	return &APIError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
