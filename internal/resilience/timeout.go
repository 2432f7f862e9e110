package resilience

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a bounded call does not complete in time.
var ErrTimeout = errors.New("operation timed out")

// CallWithTimeout runs fn and waits at most timeout for it to return.
// Vendor teardown calls carry a network round-trip and must be treated as
// failed, not hung, on expiry; fn keeps running on its goroutine after a
// timeout, so it must be safe to abandon.
func CallWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// WaitWithTimeout waits for ch to close, at most timeout.
// Returns false on expiry.
func WaitWithTimeout(ch <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
