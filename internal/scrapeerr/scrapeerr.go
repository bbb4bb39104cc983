// Package scrapeerr is the error taxonomy shared by every stage of a scrape.
// Callers branch on Kind, retry policies on IsRetryable and the orchestrator
// on IsFatal.
package scrapeerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

type Kind int

const (
	KindFatal Kind = iota
	KindNetwork
	KindAuth
	KindParse
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	default:
		return "fatal"
	}
}

// NetworkError is a transport failure or a non-2xx response. Status is zero
// when no response was received.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient is false for client errors that will not change on retry.
func (e *NetworkError) Transient() bool {
	return e.Status == 0 ||
		e.Status == http.StatusRequestTimeout ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= 500
}

// AuthError means the portal session is missing, expired or rejected.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: session rejected: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ParseError is malformed or unexpected response structure.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: parse: %v", e.Op, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is a single record that fails required field checks.
type ValidationError struct {
	Field string
	Row   int
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: invalid %s: %v", e.Row, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RetryExhaustedError is returned once a retry policy has used every attempt.
type RetryExhaustedError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// FatalError aborts the whole run.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

func Auth(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

func Parse(op string, err error) error {
	return &ParseError{Op: op, Err: err}
}

func Validation(field string, row int, err error) error {
	return &ValidationError{Field: field, Row: row, Err: err}
}

func Fatal(op string, err error) error {
	if IsFatal(err) {
		return err
	}
	return &FatalError{Op: op, Err: err}
}

// FromStatus maps a non-2xx status to the matching error, 401 and 403 mean
// the session is gone.
func FromStatus(op string, status int, body string) error {
	if len(body) > 200 {
		body = body[:200]
	}
	err := fmt.Errorf("unexpected status %d: %q", status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Op: op, Err: err}
	default:
		return &NetworkError{Op: op, Status: status, Err: err}
	}
}

// Classify returns the kind of err. Errors outside the taxonomy are fatal,
// except for transport level errors from the net package which are network.
func Classify(err error) Kind {
	var (
		validation *ValidationError
		parse      *ParseError
		auth       *AuthError
		network    *NetworkError
		fatal      *FatalError
		netErr     net.Error
	)
	switch {
	case err == nil:
		return KindFatal
	case errors.As(err, &fatal):
		return KindFatal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindFatal
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &parse):
		return KindParse
	case errors.As(err, &auth):
		return KindAuth
	case errors.As(err, &network):
		return KindNetwork
	case errors.As(err, &netErr):
		return KindNetwork
	}
	return KindFatal
}

// IsRetryable is true for transient network errors only.
func IsRetryable(err error) bool {
	if Classify(err) != KindNetwork {
		return false
	}
	var network *NetworkError
	if errors.As(err, &network) {
		return network.Transient()
	}
	return true
}

// IsFatal is true for errors that must abort the run regardless of which
// stage produced them.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Exhausted returns the retry exhaustion wrapped in err, if any.
func Exhausted(err error) (*RetryExhaustedError, bool) {
	var exhausted *RetryExhaustedError
	ok := errors.As(err, &exhausted)
	return exhausted, ok
}
