package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCallWithTimeout_Completes(t *testing.T) {
	err := CallWithTimeout(time.Second, func() error {
		return nil
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestCallWithTimeout_PropagatesError(t *testing.T) {
	want := errors.New("backend failure")
	err := CallWithTimeout(time.Second, func() error {
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}

func TestCallWithTimeout_Expires(t *testing.T) {
	err := CallWithTimeout(10*time.Millisecond, func() error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestWaitWithTimeout(t *testing.T) {
	ch := make(chan struct{})
	close(ch)
	if !WaitWithTimeout(ch, 10*time.Millisecond) {
		t.Error("Expected true for closed channel")
	}

	open := make(chan struct{})
	if WaitWithTimeout(open, 10*time.Millisecond) {
		t.Error("Expected false for open channel")
	}
}
