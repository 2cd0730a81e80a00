package breaker

import "errors"

// ErrCircuitOpen is returned when the circuit is open and the wrapped
// operation was not invoked. Callers should surface it as a
// service-unavailable condition, never retry through the breaker.
var ErrCircuitOpen = errors.New("breaker: circuit is open")

// StatusCoder is implemented by errors that carry an upstream HTTP-like
// status code. The breaker classifies failures through this interface via
// errors.As, so any error type in the request path can participate.
type StatusCoder interface {
	StatusCode() int
}
