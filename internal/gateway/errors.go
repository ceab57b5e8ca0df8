package gateway

import (
	"errors"
	"fmt"
)

// RateLimitError indicates the remote API rejected a call due to rate
// limiting. Callers may retry with backoff.
type RateLimitError struct {
	Op  string
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Op, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// PermanentAPIError indicates a remote API failure that will not resolve
// by retrying. It is surfaced to the caller as-is.
type PermanentAPIError struct {
	Op   string
	Code string
	Err  error
}

func (e *PermanentAPIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PermanentAPIError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
