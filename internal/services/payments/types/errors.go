package types

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureMismatch    = errors.New("signature verification failed")
	ErrInvalidRequest       = errors.New("invalid payment request")
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
)

// ConfigurationError is returned by adapter constructors when a required
// credential is absent. It is not recoverable.
type ConfigurationError struct {
	Provider string
	Field    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing required configuration field %q", e.Provider, e.Field)
}

// UpstreamRequestError wraps a transport failure or a non-success provider
// response. Retrying with the same order id is safe.
type UpstreamRequestError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamRequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream request failed (status %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: upstream request failed: %s", e.Provider, msg)
}

func (e *UpstreamRequestError) Unwrap() error {
	return e.Err
}

type SignatureVerificationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *SignatureVerificationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Provider, ErrSignatureMismatch)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, ErrSignatureMismatch, e.Reason)
}

func (e *SignatureVerificationError) Unwrap() error {
	return e.Err
}

func (e *SignatureVerificationError) Is(target error) bool {
	return target == ErrSignatureMismatch
}

// UnrecognizedCallbackError means an authentic callback lacks the field that
// correlates it to a payment.
type UnrecognizedCallbackError struct {
	Provider string
	Field    string
}

func (e *UnrecognizedCallbackError) Error() string {
	return fmt.Sprintf("%s: callback is missing correlation field %q", e.Provider, e.Field)
}
