// Package upstream provides the client for the caption-generation
// provider. The provider is an opaque collaborator: one unary HTTP call
// with a success/failure outcome and an HTTP-like status code, which the
// circuit breaker uses to classify failures.
package upstream

import (
	"context"
	"fmt"
)

// Request is a single generation request.
type Request struct {
	Prompt    string `json:"prompt"`
	ImageData string `json:"image_data,omitempty"` // base64, pro tier only
	Mode      string `json:"mode,omitempty"`
}

// Result is a successful generation outcome.
type Result struct {
	Caption   string `json:"caption"`
	Model     string `json:"model"`
	RequestID string `json:"request_id,omitempty"`
}

// Generator is the upstream generation operation.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Error is a failed upstream call carrying the provider's status code.
// It implements the status interface the circuit breaker classifies by.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("upstream: request failed with status %d", e.Status)
}

// StatusCode returns the provider's HTTP status.
func (e *Error) StatusCode() int {
	return e.Status
}
