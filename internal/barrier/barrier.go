// Package barrier bounds how long a build waits for the initial generation
// pass.
package barrier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultReason is used when Await times out.
const DefaultReason = "timed out waiting for initial generation"

// ErrTimeout is the sentinel matched by every *TimeoutError.
var ErrTimeout = errors.New("typedgql: timeout")

// TimeoutError reports that the ready signal did not arrive in time.
type TimeoutError struct {
	Reason string
	After  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("typedgql: %s after %s", e.Reason, e.After)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Await blocks until ready is closed (or receives a value), the timeout
// elapses, or ctx is done. A timeout of zero or less waits without limit.
// Work behind ready is not canceled when Await gives up.
func Await(ctx context.Context, ready <-chan struct{}, timeout time.Duration) error {
	return AwaitReason(ctx, ready, timeout, DefaultReason)
}

// AwaitReason is Await with a custom timeout reason.
func AwaitReason(ctx context.Context, ready <-chan struct{}, timeout time.Duration, reason string) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ready:
		return nil
	case <-expired:
		return &TimeoutError{Reason: reason, After: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}
