package stt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/podassist/podassist/internal/audio"
	"github.com/podassist/podassist/internal/observability"
	"github.com/podassist/podassist/internal/resilience"
)

// backendStream is a live transcription session audio is forwarded into.
// The Deepgram websocket client satisfies it; tests substitute a fake.
type backendStream interface {
	Write(p []byte) (int, error)
	Finish()
}

// streamFactory opens a live session. Events flow back through emit from the
// backend's own callback goroutine.
type streamFactory func(ctx context.Context, s Settings, format audio.Format, emit func(Event)) (backendStream, error)

// Settings holds the streaming backend credentials and model selection.
type Settings struct {
	APIKey   string
	Model    string
	Language string
}

// Service wraps the streaming transcription backend. It consumes the frame
// queue, forwards PCM to the backend, and produces transcript events.
// Lifecycle: Unconfigured -> Configured -> Recognizing -> Stopped.
type Service struct {
	mu     sync.Mutex
	logger zerolog.Logger

	state    State
	settings Settings
	format   audio.Format

	events       chan Event
	newStream    streamFactory
	pollInterval time.Duration
	stopTimeout  time.Duration

	active atomic.Bool
	paused atomic.Bool

	stream     backendStream
	cancel     context.CancelFunc
	done       chan struct{}
	finishOnce *sync.Once
}

// NewService creates an unconfigured transcription service backed by the
// Deepgram streaming API.
func NewService(pollInterval, stopTimeout time.Duration) *Service {
	return &Service{
		logger:       observability.ComponentLogger("stt"),
		state:        StateUnconfigured,
		events:       make(chan Event, 100),
		newStream:    newDeepgramStream,
		pollInterval: pollInterval,
		stopTimeout:  stopTimeout,
	}
}

// Configure validates credentials and the audio format and transitions to
// Configured. On failure the service stays Unconfigured.
func (s *Service) Configure(settings Settings, format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecognizing {
		return fmt.Errorf("cannot configure while recognizing")
	}
	if settings.APIKey == "" {
		s.state = StateUnconfigured
		s.logger.Warn().Msg("Speech backend credentials missing, service not configured")
		return fmt.Errorf("speech backend API key is required")
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		s.state = StateUnconfigured
		return fmt.Errorf("invalid audio format: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	s.settings = settings
	s.format = format
	s.state = StateConfigured
	s.logger.Info().
		Int("sample_rate", format.SampleRate).
		Int("channels", format.Channels).
		Str("model", settings.Model).
		Msg("Transcription service configured")
	return nil
}

// Start opens a backend session and spawns the forwarding loop over the
// given frame queue. Valid only from Configured.
func (s *Service) Start(frames <-chan audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured {
		return fmt.Errorf("start requires configured state, current state is %s", s.state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.newStream(ctx, s.settings, s.format, s.emit)
	if err != nil {
		cancel()
		observability.RecordError("backend", "stt")
		s.logger.Error().Err(err).Msg("Failed to open transcription session")
		return fmt.Errorf("failed to open transcription session: %w", err)
	}

	s.stream = stream
	s.cancel = cancel
	s.done = make(chan struct{})
	s.finishOnce = &sync.Once{}
	s.paused.Store(false)
	s.active.Store(true)
	s.state = StateRecognizing
	s.logger.Info().Msg("Recognition started")

	go s.forward(frames, stream, s.done, s.finishOnce)
	return nil
}

// forward pulls frames and pushes PCM into the backend until the sentinel
// arrives, the service stops, or the backend fails. The pull is bounded by
// the poll interval so shutdown is observed promptly.
func (s *Service) forward(frames <-chan audio.Frame, stream backendStream, done chan struct{}, once *sync.Once) {
	defer close(done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for s.active.Load() {
		select {
		case frame, ok := <-frames:
			if !ok || frame.EOS {
				s.logger.Info().Msg("Sentinel received, ending audio forwarding")
				s.finishStream(stream, once)
				s.markStopped()
				return
			}
			if s.paused.Load() {
				// Forwarding is gated during spoken-question capture; frames
				// are discarded so the queue stays drained.
				continue
			}
			pcm := audio.Float32ToPCM16(frame.Samples)
			if _, err := stream.Write(pcm); err != nil {
				observability.RecordError("backend", "stt")
				s.logger.Error().Err(err).Msg("Backend write failed, halting recognition")
				s.emit(Event{Kind: KindError, Err: fmt.Sprintf("speech backend write failed: %v", err)})
				s.active.Store(false)
				s.markStopped()
				return
			}
		case <-ticker.C:
			// Re-check the active flag within one poll interval.
		}
	}
}

// Pause gates audio forwarding without tearing down the backend session.
// Used while a spoken question is being captured.
func (s *Service) Pause() {
	if s.State() == StateRecognizing && !s.paused.Swap(true) {
		s.logger.Info().Msg("Audio forwarding paused")
	}
}

// Resume re-enables audio forwarding after a Pause.
func (s *Service) Resume() {
	if s.State() == StateRecognizing && s.paused.Swap(false) {
		s.logger.Info().Msg("Audio forwarding resumed")
	}
}

// Stop tears down the backend session and joins the forwarding loop with a
// bounded timeout. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != StateRecognizing {
		// The forwarder may have halted itself on the sentinel or a backend
		// error; the session context still needs releasing.
		cancel := s.cancel
		s.cancel = nil
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.logger.Info().Msg("Stop called but not recognizing")
		return
	}
	stream := s.stream
	cancel := s.cancel
	done := s.done
	once := s.finishOnce
	s.cancel = nil
	s.state = StateStopped
	s.mu.Unlock()

	s.active.Store(false)
	if !resilience.WaitWithTimeout(done, s.stopTimeout) {
		s.logger.Warn().Msg("Forwarding loop did not stop in time")
	}

	// Closing the session is a network round-trip; bound it.
	if err := resilience.CallWithTimeout(s.stopTimeout, func() error {
		s.finishStream(stream, once)
		return nil
	}); err != nil {
		observability.RecordError("timeout", "stt")
		s.logger.Warn().Err(err).Msg("Backend session close timed out")
	}

	if cancel != nil {
		cancel()
	}
	s.logger.Info().Msg("Recognition stopped")
}

func (s *Service) finishStream(stream backendStream, once *sync.Once) {
	if stream == nil || once == nil {
		return
	}
	once.Do(stream.Finish)
}

func (s *Service) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRecognizing {
		s.state = StateStopped
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the transcript event queue.
func (s *Service) Events() <-chan Event {
	return s.events
}

// DrainEvents discards queued transcript events.
func (s *Service) DrainEvents() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// emit pushes an event without blocking the backend callback goroutine.
func (s *Service) emit(ev Event) {
	observability.RecordTranscriptEvent(ev.Kind.String())
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("kind", ev.Kind.String()).Msg("Event queue full, dropping event")
	}
}
