package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrNotFoundOrForbidden indicates the resource does not exist or belongs to another user.
	// The two cases are deliberately indistinguishable to the caller.
	ErrNotFoundOrForbidden = errors.New("not found or forbidden")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates no extractor handles the file type
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrProvider indicates an embedding or LLM provider failure
	ErrProvider = errors.New("provider error")

	// ErrPersistence indicates the datastore is unavailable or rejected the operation
	ErrPersistence = errors.New("persistence error")

	// ErrDimensionMismatch indicates a vector does not have the configured dimensionality
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrServiceUnavailable indicates a required service is not configured
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ProviderError describes a failed call to an external AI provider.
// It matches ErrProvider with errors.Is.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProvider) true for any ProviderError
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// RateLimited reports whether the provider rejected the call for rate limiting
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Unauthorized reports whether the provider rejected the credential
func (e *ProviderError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// NewProviderError wraps err as a ProviderError
func NewProviderError(provider, op string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, StatusCode: statusCode, Err: err}
}

// PersistenceError wraps a datastore error so that errors.Is(err, ErrPersistence) holds
// while keeping the original error in the chain.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
