package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// ConfigError means required credentials or settings are missing.
// Surfaced before any network call is attempted. Never retriable.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for a missing or invalid field
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// AuthError means the upstream rejected our credentials (401/403).
// Never retried automatically: retrying with the same keys cannot succeed.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected (status %d): %s", e.Status, e.Message)
}

func (e *AuthError) IsRetriable() bool {
	return false
}

// UpstreamError means a required remote call returned a non-2xx status or
// malformed JSON. Status and message mirror the upstream response when known.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error (status %d): %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

func (e *UpstreamError) IsRetriable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates an UpstreamError mirroring an upstream response
func NewUpstreamError(status int, message string) *UpstreamError {
	return &UpstreamError{Status: status, Message: message}
}

// TransportError represents a network-level failure (dial, read, write).
// WebSocket disconnects are transport errors: recovery is automatic via
// reconnect, so callers treat them as a connectivity indicator, not fatal.
type TransportError struct {
	Op        string
	Err       error
	Retriable bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) IsRetriable() bool {
	return e.Retriable
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

var (
	// ErrCredentialsMissing is returned when an operation requires API
	// credentials that were never provided.
	ErrCredentialsMissing = errors.New("credentials not configured")

	// ErrInvalidPair is returned when a trading pair is malformed or empty.
	ErrInvalidPair = errors.New("invalid trading pair")

	// ErrInvalidOrderParam is returned when a required order field is
	// missing or out of its enumerated range.
	ErrInvalidOrderParam = errors.New("missing or invalid order parameter")

	// ErrWindowTooWide is returned when an order-history query spans more
	// than the exchange's 90-day limit. Callers must chunk longer ranges.
	ErrWindowTooWide = errors.New("time window exceeds 90 days")

	// ErrQuoteUnavailable is returned when every stock provider failed and
	// no cached quote exists.
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// HTTPStatus maps a client error to the status a route handler should return.
func HTTPStatus(err error) int {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return http.StatusUnauthorized
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Status >= 400 && upErr.Status < 600 {
			return upErr.Status
		}
		return http.StatusBadGateway
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway
	}
	if errors.Is(err, ErrWindowTooWide) || errors.Is(err, ErrInvalidPair) || errors.Is(err, ErrInvalidOrderParam) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrQuoteUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
