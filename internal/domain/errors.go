package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidModel        = errors.New("invalid model")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrProviderFailure     = errors.New("provider failure")
	ErrHostingAuthMissing  = errors.New("hosting authentication token not found")
	ErrHosting             = errors.New("file hosting failure")
	ErrInvalidURL          = errors.New("invalid artifact url")
)

// ProviderError describes a failed or malformed exchange with an upstream
// generation provider. Raw holds the body worth persisting as diagnostics.
type ProviderError struct {
	APIType    string
	StatusCode int
	Message    string
	Raw        json.RawMessage
	// Retryable marks transport failures (timeouts, refused connections) that
	// a later poll may get past.
	Retryable bool
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "failed to generate"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.APIType, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.APIType, msg)
}

func (e *ProviderError) Unwrap() error { return ErrProviderFailure }

// HostingError wraps a failure returned by the file-hosting service.
type HostingError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HostingError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("hosting %s: %d - %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hosting %s: %s", e.Op, e.Message)
}

func (e *HostingError) Unwrap() error { return ErrHosting }

// AsProviderError extracts a *ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
