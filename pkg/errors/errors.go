package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrUserNotFound     = errors.New("user not found")
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrDomainTaken      = errors.New("domain already routed to a tenant")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInvalidBucket    = errors.New("unknown configuration bucket")
	ErrMalformedConfig  = errors.New("malformed configuration bucket")
	ErrRateLimited      = errors.New("rate limited")
	ErrCacheUnavailable = errors.New("cache backend unavailable")
)

// AppError represents an application error with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
