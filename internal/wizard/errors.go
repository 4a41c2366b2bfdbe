package wizard

import (
	"alcyxob/health-protocols/internal/client"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrSubmissionInFlight is returned by Submit while an earlier Submit is outstanding.
	ErrSubmissionInFlight = errors.New("a protocol submission is already in flight")
	ErrSessionClosed      = errors.New("wizard session is closed")
	ErrNotAtGeneration    = errors.New("protocol can only be submitted from the generation step")
)

// ValidationError is a step completion predicate that does not hold. It is
// produced locally and never involves the network.
type ValidationError struct {
	Step   Step
	Fields map[string]string // field name -> message
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	msgs := make([]string, len(names))
	for i, name := range names {
		msgs[i] = e.Fields[name]
	}
	return fmt.Sprintf("%s: %s", e.Step, strings.Join(msgs, "; "))
}

// NetworkError is a transport failure. Retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is a 401 or 403. The user must log in again.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == http.StatusForbidden {
		return "not permitted: " + e.Message + " (log in with an account that has access)"
	}
	return "not authenticated: " + e.Message + " (log in again)"
}

// InvalidInputError is any other 4xx: the server rejected the request content.
type InvalidInputError struct {
	Status  int
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
}

// PayloadTooLargeError is a 413. Size is the encoded request size in bytes;
// Limit is the server ceiling when the server reported it.
type PayloadTooLargeError struct {
	Size  int
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("protocol payload is %d bytes, server limit is %d bytes", e.Size, e.Limit)
	}
	return fmt.Sprintf("protocol payload of %d bytes is too large for the server", e.Size)
}

// ServerError is a 5xx. Retryable.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	var netErr *NetworkError
	var srvErr *ServerError
	return errors.As(err, &netErr) || errors.As(err, &srvErr)
}

// classify maps a backend error onto the wizard taxonomy. payloadSize is the
// number of request body bytes sent, reported on 413.
func classify(err error, payloadSize int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) {
		return &NetworkError{Err: err}
	}
	switch status := httpErr.StatusCode; {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Status: status, Message: httpErr.Message}
	case status == http.StatusRequestEntityTooLarge:
		return &PayloadTooLargeError{Size: payloadSize, Limit: httpErr.Limit}
	case status >= 400 && status < 500:
		return &InvalidInputError{Status: status, Message: httpErr.Message}
	default:
		return &ServerError{Status: status, Message: httpErr.Message}
	}
}
