package counter

import "errors"

// Standard errors for counter operations.
//
// Use errors.Is to check for these errors:
//
//	value, err := s.Get(ctx, key)
//	if errors.Is(err, counter.ErrNotFound) {
//		// key absent or expired
//	}
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("counter: key not found")

	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("counter: store is closed")

	// ErrUnavailable is returned when the shared backend cannot be reached
	// and no fallback is wired in.
	ErrUnavailable = errors.New("counter: shared backend unavailable")
)
