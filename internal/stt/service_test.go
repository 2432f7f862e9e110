package stt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/podassist/podassist/internal/audio"
)

// fakeStream records forwarded audio and lets tests fail writes.
type fakeStream struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	finished bool
}

func (f *fakeStream) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.writes = append(f.writes, buf)
	return len(p), nil
}

func (f *fakeStream) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
}

func (f *fakeStream) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeStream) isFinished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

func newTestService(stream *fakeStream) *Service {
	s := NewService(5*time.Millisecond, 200*time.Millisecond)
	s.newStream = func(ctx context.Context, set Settings, format audio.Format, emit func(Event)) (backendStream, error) {
		return stream, nil
	}
	return s
}

func testFormat() audio.Format {
	return audio.Format{SampleRate: 16000, Channels: 1}
}

func speechFrame() audio.Frame {
	return audio.Frame{Samples: make([]float32, 64)}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not reached in time")
}

func TestService_ConfigureRequiresKey(t *testing.T) {
	s := newTestService(&fakeStream{})

	if err := s.Configure(Settings{}, testFormat()); err == nil {
		t.Error("Expected error configuring without an API key")
	}
	if s.State() != StateUnconfigured {
		t.Errorf("Expected Unconfigured state, got %s", s.State())
	}

	if err := s.Configure(Settings{APIKey: "key"}, audio.Format{}); err == nil {
		t.Error("Expected error configuring with an invalid format")
	}

	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if s.State() != StateConfigured {
		t.Errorf("Expected Configured state, got %s", s.State())
	}
}

func TestService_StartRequiresConfigured(t *testing.T) {
	s := newTestService(&fakeStream{})
	frames := make(chan audio.Frame)

	if err := s.Start(frames); err == nil {
		t.Error("Expected error starting from Unconfigured")
	}
}

func TestService_ForwardsFramesAndStopsOnSentinel(t *testing.T) {
	stream := &fakeStream{}
	s := newTestService(stream)
	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frames := make(chan audio.Frame, 8)
	frames <- speechFrame()
	frames <- speechFrame()
	frames <- speechFrame()
	frames <- audio.Sentinel()

	if err := s.Start(frames); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return s.State() == StateStopped })

	if got := stream.writeCount(); got != 3 {
		t.Errorf("Expected 3 forwarded payloads, got %d", got)
	}
	if !stream.isFinished() {
		t.Error("Expected backend session to be finished after sentinel")
	}
}

func TestService_PauseGatesForwarding(t *testing.T) {
	stream := &fakeStream{}
	s := newTestService(stream)
	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frames := make(chan audio.Frame, 8)
	if err := s.Start(frames); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Pause()
	frames <- speechFrame()
	frames <- speechFrame()
	time.Sleep(50 * time.Millisecond)
	if got := stream.writeCount(); got != 0 {
		t.Errorf("Expected no writes while paused, got %d", got)
	}

	s.Resume()
	frames <- speechFrame()
	waitFor(t, time.Second, func() bool { return stream.writeCount() == 1 })

	s.Stop()
}

func TestService_BackendErrorHalts(t *testing.T) {
	stream := &fakeStream{writeErr: errors.New("connection reset")}
	s := newTestService(stream)
	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frames := make(chan audio.Frame, 8)
	frames <- speechFrame()

	if err := s.Start(frames); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return s.State() == StateStopped })

	select {
	case ev := <-s.Events():
		if ev.Kind != KindError {
			t.Errorf("Expected error event, got %s", ev.Kind)
		}
	default:
		t.Error("Expected an error event on the queue")
	}
}

func TestService_StopIsIdempotent(t *testing.T) {
	stream := &fakeStream{}
	s := newTestService(stream)
	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frames := make(chan audio.Frame, 1)
	if err := s.Start(frames); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Stop()
	if s.State() != StateStopped {
		t.Errorf("Expected Stopped state, got %s", s.State())
	}
	s.Stop() // second call is a no-op
	if !stream.isFinished() {
		t.Error("Expected backend session finished after Stop")
	}
}

func TestService_StopReleasesContextAfterSentinelHalt(t *testing.T) {
	stream := &fakeStream{}
	s := newTestService(stream)
	var sessionCtx context.Context
	s.newStream = func(ctx context.Context, set Settings, format audio.Format, emit func(Event)) (backendStream, error) {
		sessionCtx = ctx
		return stream, nil
	}
	if err := s.Configure(Settings{APIKey: "key"}, testFormat()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	frames := make(chan audio.Frame, 2)
	frames <- speechFrame()
	frames <- audio.Sentinel()
	if err := s.Start(frames); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return s.State() == StateStopped })
	if sessionCtx.Err() != nil {
		t.Fatal("Expected session context alive until Stop")
	}

	s.Stop()
	if sessionCtx.Err() == nil {
		t.Error("Expected Stop to release the session context after a sentinel halt")
	}
}

func TestService_EventQueueDrain(t *testing.T) {
	s := newTestService(&fakeStream{})
	s.emit(Event{Kind: KindFinal, Text: "hello"})
	s.emit(Event{Kind: KindIntermediate, Text: "wor"})

	s.DrainEvents()

	select {
	case ev := <-s.Events():
		t.Errorf("Expected empty queue after drain, got %v", ev)
	default:
	}
}
