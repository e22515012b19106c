package shortener

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failed call to the shortening service.
type Kind int

const (
	// KindTransport covers timeouts, DNS failures and non-2xx replies
	// without a structured error body.
	KindTransport Kind = iota
	// KindConnectionFailed means the service host refused the connection.
	KindConnectionFailed
	// KindRemoteRejected means the service answered with an error body.
	KindRemoteRejected
	// KindValidationFailed is a rejection the service reported as a
	// validation failure. Details holds the per-field errors it sent, if any.
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection_failed"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindValidationFailed:
		return "validation_failed"
	default:
		return "transport"
	}
}

// validationMarker is matched case-insensitively against the service's
// error text to recognize validation failures.
const validationMarker = "validation"

// FieldError is one entry of a validation failure's details array.
type FieldError struct {
	Path  string `json:"path"`
	Msg   string `json:"msg"`
	Value string `json:"value,omitempty"`
}

// Error is returned by Client.Shorten for every failure.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Details []FieldError
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func connectionFailed(host string, err error) *Error {
	return &Error{
		Kind:    KindConnectionFailed,
		Message: fmt.Sprintf("Can't connect to %s - is the URL shortener running?", host),
		Err:     err,
	}
}

func isValidationMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), validationMarker)
}
