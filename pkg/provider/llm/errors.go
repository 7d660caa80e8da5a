package llm

import (
	"errors"
	"fmt"
)

// ErrUnsupportedContent is wrapped by a [*ServiceError] when a provider is
// given a part it cannot send, such as video bytes to a text-only backend.
var ErrUnsupportedContent = errors.New("llm: unsupported content part")

// ErrEmptyResponse is wrapped by a [*ServiceError] when the backend answered
// without any candidate text.
var ErrEmptyResponse = errors.New("llm: empty response")

// ServiceError reports any failure of a provider call: transport, auth,
// quota or model-side. It is deliberately not classified further.
type ServiceError struct {
	// Provider names the backend, e.g. "gemini".
	Provider string

	// Op is the call shape that failed: "complete" or "stream".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err into a *ServiceError. It returns nil when err is
// nil and returns err unchanged when it already is a *ServiceError.
func NewServiceError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Provider: provider, Op: op, Err: err}
}
