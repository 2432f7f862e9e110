package stt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/podassist/podassist/internal/audio"
)

// fakeMic feeds canned frames into the capturer.
type fakeMic struct {
	frames chan audio.Frame
}

func newFakeMic(capacity int) *fakeMic {
	return &fakeMic{frames: make(chan audio.Frame, capacity)}
}

func (f *fakeMic) Start(deviceIndex int) error { return nil }
func (f *fakeMic) Stop()                       {}
func (f *fakeMic) Frames() <-chan audio.Frame  { return f.frames }
func (f *fakeMic) Format() audio.Format        { return audio.Format{SampleRate: 16000, Channels: 1} }
func (f *fakeMic) Close() error                { return nil }

// captureStream emits a canned event once the session is finished, the way
// the backend delivers the final transcript after the audio is flushed.
type captureStream struct {
	mu       sync.Mutex
	emit     func(Event)
	onFinish *Event
	writes   int
	finished bool
}

func (c *captureStream) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	return len(p), nil
}

func (c *captureStream) Finish() {
	c.mu.Lock()
	already := c.finished
	c.finished = true
	ev := c.onFinish
	c.mu.Unlock()
	if !already && ev != nil {
		c.emit(*ev)
	}
}

func (c *captureStream) isFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

func newTestCapturer(mic *fakeMic, stream *captureStream, timeout time.Duration) *Capturer {
	c := NewCapturer(Settings{APIKey: "key"}, 512, 16, timeout)
	c.vadConfig = &audio.VADConfig{EnergyThreshold: 500, SilenceFrames: 2}
	c.newSource = func() (frameSource, int, error) {
		return mic, 0, nil
	}
	c.newStream = func(ctx context.Context, s Settings, format audio.Format, emit func(Event)) (backendStream, error) {
		stream.emit = emit
		return stream, nil
	}
	return c
}

func loudFrame() audio.Frame {
	samples := make([]float32, 64)
	for i := range samples {
		samples[i] = 0.5
	}
	return audio.Frame{Samples: samples}
}

func silentFrame() audio.Frame {
	return audio.Frame{Samples: make([]float32, 64)}
}

func TestCapture_ReturnsFinalTranscript(t *testing.T) {
	mic := newFakeMic(16)
	stream := &captureStream{onFinish: &Event{Kind: KindFinal, Text: "  what did they just say  "}}
	c := newTestCapturer(mic, stream, time.Second)

	// Speech then enough silence to endpoint the utterance.
	mic.frames <- loudFrame()
	mic.frames <- loudFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()

	text, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if text != "what did they just say" {
		t.Errorf("Expected trimmed transcript, got %q", text)
	}
	if !stream.isFinished() {
		t.Error("Expected session to be finished after endpointing")
	}
}

func TestCapture_TimeoutWithoutSpeech(t *testing.T) {
	mic := newFakeMic(16)
	stream := &captureStream{}
	c := newTestCapturer(mic, stream, 50*time.Millisecond)

	_, err := c.Capture(context.Background())
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Errorf("Expected ErrCaptureTimeout, got %v", err)
	}
}

func TestCapture_NoMatchMeansNoSpeech(t *testing.T) {
	mic := newFakeMic(16)
	stream := &captureStream{onFinish: &Event{Kind: KindNoMatch}}
	c := newTestCapturer(mic, stream, time.Second)

	mic.frames <- loudFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()

	_, err := c.Capture(context.Background())
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrNoSpeech, got %v", err)
	}
}

func TestCapture_EmptyFinalMeansNoSpeech(t *testing.T) {
	mic := newFakeMic(16)
	stream := &captureStream{onFinish: &Event{Kind: KindFinal, Text: "   "}}
	c := newTestCapturer(mic, stream, time.Second)

	mic.frames <- loudFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()

	_, err := c.Capture(context.Background())
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrNoSpeech, got %v", err)
	}
}

func TestCapture_BackendErrorSurfaces(t *testing.T) {
	mic := newFakeMic(16)
	stream := &captureStream{onFinish: &Event{Kind: KindError, Err: "speech backend error: 1011: upstream failure"}}
	c := newTestCapturer(mic, stream, time.Second)

	mic.frames <- loudFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()
	mic.frames <- silentFrame()

	_, err := c.Capture(context.Background())
	if err == nil {
		t.Fatal("Expected an error from a backend failure")
	}
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrCaptureTimeout) {
		t.Errorf("Expected a backend error, got %v", err)
	}
}
